// Command blogctl runs operator tasks against the blog's stores.
//
//	blogctl cache-invalidate -type posts [-slug hello-world]
//	BLOG_USER_PASSWORD=... blogctl user-add -username alice -email alice@example.com
//	BLOG_USER_PASSWORD=... blogctl user-passwd -username alice
//	blogctl user-disable -username alice [-enable]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/husnainisworking/personal-blog/internal/config"
	"github.com/husnainisworking/personal-blog/internal/infrastructure/dynamo"
	redisinfra "github.com/husnainisworking/personal-blog/internal/infrastructure/redis"
	"github.com/husnainisworking/personal-blog/internal/pkg/logging"
	"github.com/joho/godotenv"
)

const usage = `usage: blogctl <command> [flags]

commands:
  cache-invalidate  drop cached record lookups (-type, optional -slug)
  user-add          create an account (-username, -email, -phone, -password-env)
  user-passwd       change a password (-username, -password-env)
  user-disable      block or restore logins (-username, optional -enable)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "cache-invalidate":
		client, cerr := redisinfra.Connect(ctx, cfg.RedisURL)
		if cerr != nil {
			logger.Fatal().Err(cerr).Msg("redis")
		}
		defer func() { _ = client.Close() }()
		err = cacheInvalidate(ctx, redisinfra.NewRecordCache(client, cfg.CacheTTL), args, os.Stdout)
	case "user-add":
		client, cerr := dynamo.NewClient(ctx, cfg)
		if cerr != nil {
			logger.Fatal().Err(cerr).Msg("dynamodb")
		}
		err = userAdd(ctx, dynamo.NewUserRepo(client, cfg.DynamoTables.Users), args, os.Getenv, time.Now, os.Stdout)
	case "user-passwd", "user-disable":
		client, cerr := dynamo.NewClient(ctx, cfg)
		if cerr != nil {
			logger.Fatal().Err(cerr).Msg("dynamodb")
		}
		users := dynamo.NewUserRepo(client, cfg.DynamoTables.Users)
		if cmd == "user-passwd" {
			err = userPasswd(ctx, users, args, os.Getenv, os.Stdout)
		} else {
			err = userDisable(ctx, users, args, os.Stdout)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error().Err(err).Str("command", cmd).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
