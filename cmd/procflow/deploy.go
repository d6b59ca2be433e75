package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/infra/application/config"
	bizConfig "github.com/grand-thief-cash/procflow/internal/config"
	"github.com/grand-thief-cash/procflow/internal/dao"
	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <file>...",
	Short: "Deploy BPMN files or archives straight into the configured database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		env, _ := cmd.Flags().GetString("env")
		name, _ := cmd.Flags().GetString("name")
		tenant, _ := cmd.Flags().GetString("tenant")
		category, _ := cmd.Flags().GetString("category")

		biz := bizConfig.GetBizConfig()
		cm := config.NewConfigManager(env, cfgPath)
		cm.SetBizConfig(biz)
		if err := cm.LoadConfig(); err != nil {
			return err
		}
		biz.Normalize()
		appCfg := cm.GetConfig()
		if appCfg.Database == nil || !appCfg.Database.Enabled {
			return fmt.Errorf("deploy needs an enabled database section in %s", cfgPath)
		}

		resources := make(map[string][]byte, len(args))
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			resources[filepath.Base(path)] = data
		}
		if name == "" {
			name = filepath.Base(args[0])
		}

		ctx := cmd.Context()
		db := database.NewComponent(appCfg.Database)
		if err := db.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = db.Stop(ctx) }()
		gdb, err := db.GetDB(biz.Engine.DataSource)
		if err != nil {
			return err
		}

		eng := engine.NewEngine(biz, dao.NewSet(gdb))
		dep, err := eng.Deploy(ctx, engine.DeployRequest{
			Name:      name,
			TenantID:  tenant,
			Category:  category,
			Resources: resources,
		})
		if err != nil {
			return err
		}
		defs, _, err := eng.ProcessDefinitions(ctx, &model.ProcessDefinitionQuery{DeploymentID: dep.ID}, query.Unpaged("key_"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deployment %s (%s)\n", dep.ID, dep.Name)
		for _, d := range defs {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s version %d\n", d.Key, d.Version)
		}
		return nil
	},
}

func init() {
	deployCmd.Flags().String("name", "", "deployment name, defaults to the first file name")
	deployCmd.Flags().String("tenant", "", "tenant id")
	deployCmd.Flags().String("category", "", "deployment category")
	rootCmd.AddCommand(deployCmd)
}
