package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kayprogrammer/socialnet-v2/config"
	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/internal/service"
	"github.com/kayprogrammer/socialnet-v2/pkg/database"
	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
)

// 管理员广播：入队一条 ADMIN 通知，由 server 的 Broadcaster 扇出
//
//	broadcast send "Scheduled maintenance at 02:00"
//	broadcast delete <notification-id>
func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: broadcast send <text> | broadcast delete <id>")
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(context.Background(), cfg, os.Args[1], strings.Join(os.Args[2:], " ")); err != nil {
		logger.Error("broadcast failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd, arg string) error {
	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}

	// DELETED 事件需要经 redis 桥才能到达 server 进程中的会话
	var publisher relay.Publisher = relay.Nop{}
	if cfg.Redis.Enabled && cfg.Relay.RedisBridge {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		publisher = relay.NewRedisBroker(rdb, cfg.Relay.RedisChannel, nil)
	}

	directory := service.NewDirectory(repository.NewUserRepository(db), nil, nil, 0)
	notifications := service.NewNotificationService(db, directory, publisher)

	switch cmd {
	case "send":
		n, err := notifications.Broadcast(ctx, arg)
		if err != nil {
			return err
		}
		fmt.Println(n.ID)
	case "delete":
		if err := notifications.DeleteBroadcast(ctx, arg); err != nil {
			return err
		}
		fmt.Println("deleted", arg)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
