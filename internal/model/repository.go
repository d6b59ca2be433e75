package model

import "time"

type Deployment struct {
	ID             string    `gorm:"column:id;primaryKey;size:64"`
	Name           string    `gorm:"column:name_;size:255"`
	Category       string    `gorm:"column:category;size:255"`
	TenantID       string    `gorm:"column:tenant_id;size:255;index"`
	DeploymentTime time.Time `gorm:"column:deploy_time"`
}

func (Deployment) TableName() string { return "act_re_deployment" }

// Resource is one file of a deployment. Bytes live in the blob store under BlobKey;
// Bytes is only filled when no blob store is configured.
type Resource struct {
	ID           string `gorm:"column:id;primaryKey;size:64"`
	DeploymentID string `gorm:"column:deployment_id;size:64;index"`
	Name         string `gorm:"column:name_;size:255"`
	BlobKey      string `gorm:"column:blob_key;size:512"`
	Bytes        []byte `gorm:"column:bytes"`
	Generated    bool   `gorm:"column:generated"`
}

func (Resource) TableName() string { return "act_ge_resource" }

type ProcessDefinition struct {
	ID                       string `gorm:"column:id;primaryKey;size:64"`
	Key                      string `gorm:"column:key_;size:255;index"`
	Name                     string `gorm:"column:name_;size:255"`
	Category                 string `gorm:"column:category;size:255"`
	Description              string `gorm:"column:description;size:4000"`
	Version                  int    `gorm:"column:version"`
	DeploymentID             string `gorm:"column:deployment_id;size:64;index"`
	ResourceName             string `gorm:"column:resource_name;size:4000"`
	DiagramResourceName      string `gorm:"column:diagram_resource_name;size:4000"`
	HasStartForm             bool   `gorm:"column:has_start_form"`
	GraphicalNotationDefined bool   `gorm:"column:graphical_notation"`
	SuspensionState          int    `gorm:"column:suspension_state"`
	TenantID                 string `gorm:"column:tenant_id;size:255"`
}

func (ProcessDefinition) TableName() string { return "act_re_procdef" }

func (p *ProcessDefinition) Suspended() bool { return p.SuspensionState == 2 }
