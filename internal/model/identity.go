package model

type User struct {
	ID        string `gorm:"column:id;primaryKey;size:64"`
	Revision  int    `gorm:"column:rev"`
	FirstName string `gorm:"column:first_;size:255"`
	LastName  string `gorm:"column:last_;size:255"`
	Email     string `gorm:"column:email;size:255"`
	Password  string `gorm:"column:pwd;size:255"`
}

func (User) TableName() string { return "act_id_user" }

type Group struct {
	ID       string `gorm:"column:id;primaryKey;size:64"`
	Revision int    `gorm:"column:rev"`
	Name     string `gorm:"column:name_;size:255"`
	Type     string `gorm:"column:type_;size:255"`
}

func (Group) TableName() string { return "act_id_group" }

type Membership struct {
	UserID  string `gorm:"column:user_id;primaryKey;size:64"`
	GroupID string `gorm:"column:group_id;primaryKey;size:64"`
}

func (Membership) TableName() string { return "act_id_membership" }

// All lists every persistent model for schema migration.
func All() []any {
	return []any{
		&Deployment{}, &Resource{}, &ProcessDefinition{},
		&Execution{}, &Task{}, &IdentityLink{}, &Variable{}, &Job{},
		&HistoricProcessInstance{}, &HistoricActivityInstance{}, &HistoricTaskInstance{},
		&HistoricVariableInstance{}, &HistoricDetail{}, &HistoricIdentityLink{}, &Comment{},
		&User{}, &Group{}, &Membership{},
	}
}
