package basic

import (
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"

	core "relmap/data/db"
	"relmap/data/db/dialect"
)

// BuildDSN 由配置得到 sql.Open 使用的连接串
//
// DSN 非空时原样使用；否则 mysql、postgres 由主机、端口、账号拼装，
// 其余驱动（sqlite）把 Database 当作文件路径。
func BuildDSN(config core.DBConfig) string {
	if config.DSN != "" {
		return config.DSN
	}
	switch dialect.New(config.Driver).Name() {
	case dialect.NameMySQL:
		mc := mysql.NewConfig()
		mc.User = config.Username
		mc.Passwd = config.Password
		mc.Net = "tcp"
		mc.Addr = hostPort(config, 3306)
		mc.DBName = config.Database
		mc.ParseTime = true
		return mc.FormatDSN()
	case dialect.NamePostgres:
		u := url.URL{Scheme: "postgres", Host: hostPort(config, 5432), Path: "/" + config.Database}
		if config.Username != "" {
			u.User = url.UserPassword(config.Username, config.Password)
		}
		return u.String()
	default:
		return config.Database
	}
}

func hostPort(config core.DBConfig, defaultPort int) string {
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
