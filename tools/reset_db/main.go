// reset_db 清空私信和用户数据（保留表结构），并清除消息缓存
// 仅支持 MySQL
package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"pm-system/config"
	"pm-system/pkg/redis"

	"github.com/go-sql-driver/mysql"
)

// 子表在前
var tables = []string{"message", "user"}

func main() {
	configPath := flag.String("config", config.DefaultPath, "配置文件路径")
	yes := flag.Bool("yes", false, "跳过确认")
	messagesOnly := flag.Bool("messages-only", false, "只清空 message 表")
	flag.Parse()

	cfg := config.LoadConfigFrom(*configPath)
	if cfg.Database.Driver != "mysql" {
		log.Fatalf("reset_db only supports mysql, got %q", cfg.Database.Driver)
	}

	db, err := sql.Open("mysql", dsn(cfg.Database))
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Database connection test failed: %v", err)
	}
	fmt.Printf("Database connected: %s\n", cfg.Database.Database)

	targets := tables
	if *messagesOnly {
		targets = tables[:1]
	}

	if !*yes && !confirm(targets) {
		fmt.Println("Operation cancelled")
		return
	}

	_, _ = db.Exec("SET FOREIGN_KEY_CHECKS=0")
	for _, table := range targets {
		fmt.Printf("Clearing table %s... ", table)
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM `%s`", table)); err != nil {
			fmt.Printf("Failed: %v\n", err)
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE `%s` AUTO_INCREMENT = 1", table)); err != nil {
			fmt.Printf("Failed to reset auto-increment: %v\n", err)
			continue
		}
		fmt.Println("Success")
	}
	_, _ = db.Exec("SET FOREIGN_KEY_CHECKS=1")

	flushCache(cfg)

	fmt.Println("\nDatabase reset completed!")
}

// dsn 由配置构建 MySQL DSN
func dsn(c config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	mc.DBName = c.Database
	mc.ParseTime = true
	if c.Charset != "" {
		mc.Params = map[string]string{"charset": c.Charset}
	}
	return mc.FormatDSN()
}

func confirm(targets []string) bool {
	fmt.Printf("\nWARNING: This operation will CLEAR ALL DATA in tables [%s]!\n", strings.Join(targets, ", "))
	fmt.Print("Type 'YES' to confirm: ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line) == "YES"
}

// flushCache 清除已缓存的消息渲染结果；Redis不可用时只提示
func flushCache(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redis.InitRedis(ctx, cfg.Redis)
	if err != nil {
		fmt.Printf("Skipping cache flush: %v\n", err)
		return
	}
	defer redis.Close()

	n, err := redis.NewNamespace(client, redis.MessageNamespace, cfg.Cache.MessageTTL).Flush(ctx)
	if err != nil {
		fmt.Printf("Cache flush failed: %v\n", err)
		return
	}
	fmt.Printf("Flushed %d cached messages\n", n)
}
