package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grand-thief-cash/procflow/infra/application"
	"github.com/grand-thief-cash/procflow/infra/application/components/http_server"
	appconsts "github.com/grand-thief-cash/procflow/infra/application/consts"
	"github.com/grand-thief-cash/procflow/infra/application/hooks"
	bizConfig "github.com/grand-thief-cash/procflow/internal/config"
	"github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the process engine, the job executor and the REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		env, _ := cmd.Flags().GetString("env")

		biz := bizConfig.GetBizConfig()
		app := application.NewApp(env, cfgPath)
		app.SetBizConfig(biz)
		if err := app.Boot(); err != nil {
			return err
		}

		if err := app.AddHook("request_metrics", hooks.BeforeStart, func(ctx context.Context) error {
			return useRequestMetrics(app)
		}, 10); err != nil {
			return err
		}
		return app.Run()
	},
}

// useRequestMetrics puts the engine metrics middleware in front of the REST routes. Either
// component may be disabled, in which case nothing is installed.
func useRequestMetrics(app *application.App) error {
	srvComp, err := app.GetComponent(appconsts.COMPONENT_HTTP_SERVER)
	if err != nil {
		return nil
	}
	mComp, err := app.GetComponent(consts.COMP_SVC_METRICS)
	if err != nil {
		return nil
	}
	srv, ok := srvComp.(*http_server.HTTPServerComponent)
	if !ok {
		return fmt.Errorf("%s type assertion failed", appconsts.COMPONENT_HTTP_SERVER)
	}
	m, ok := mComp.(*metrics.EngineMetrics)
	if !ok {
		return fmt.Errorf("%s type assertion failed", consts.COMP_SVC_METRICS)
	}
	return srv.Use(m.Middleware)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
