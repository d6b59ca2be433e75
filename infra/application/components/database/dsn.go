package database

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/glebarez/sqlite"
	gormMySQL "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func dialector(ds *DataSourceConfig) (gorm.Dialector, error) {
	dsn, err := buildDSN(ds)
	if err != nil {
		return nil, err
	}
	switch ds.Driver {
	case DriverMySQL:
		return gormMySQL.New(gormMySQL.Config{DSN: dsn}), nil
	case DriverPostgres:
		return postgres.New(postgres.Config{DSN: dsn}), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported driver %q", ds.Driver)
}

func buildDSN(ds *DataSourceConfig) (string, error) {
	if strings.TrimSpace(ds.DSN) != "" {
		return ds.DSN, nil
	}
	switch ds.Driver {
	case DriverMySQL:
		return mysqlDSN(ds)
	case DriverPostgres:
		return postgresDSN(ds)
	case DriverSQLite:
		if ds.Database == "" {
			return "file::memory:?cache=shared", nil
		}
		q := url.Values{}
		q.Set("_pragma", "foreign_keys(1)")
		for k, v := range ds.Params {
			q.Add(k, v)
		}
		return ds.Database + "?" + q.Encode(), nil
	}
	return "", fmt.Errorf("unsupported driver %q", ds.Driver)
}

func mysqlDSN(ds *DataSourceConfig) (string, error) {
	if ds.Host == "" || ds.User == "" || ds.Database == "" {
		return "", errors.New("host, user, database required when dsn not provided")
	}
	port := ds.Port
	if port == 0 {
		port = 3306
	}
	mc := mysqlDriver.NewConfig()
	mc.User = ds.User
	mc.Passwd = ds.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", ds.Host, port)
	mc.DBName = ds.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	for k, v := range ds.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN(), nil
}

func postgresDSN(ds *DataSourceConfig) (string, error) {
	if ds.Host == "" || ds.User == "" || ds.Database == "" {
		return "", errors.New("host, user, database required when dsn not provided")
	}
	port := ds.Port
	if port == 0 {
		port = 5432
	}
	parts := []string{
		"host=" + ds.Host,
		fmt.Sprintf("port=%d", port),
		"user=" + ds.User,
		"password=" + ds.Password,
		"dbname=" + ds.Database,
	}
	params := map[string]string{"sslmode": "disable", "TimeZone": "UTC"}
	for k, v := range ds.Params {
		params[k] = v
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, " "), nil
}
