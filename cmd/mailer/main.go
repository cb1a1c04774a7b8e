package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/mailer"
	"github.com/dmitrijs2005/usersvc/internal/server/notify"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := mailer.LoadConfig()
	if err != nil {
		log.Printf("%v", err)
		return
	}

	logger := logging.New(cfg.LogBackend, os.Stdout)

	queue := notify.NewRedisQueue(cfg.RedisAddr, cfg.RedisPassword)
	defer queue.Close()

	m := mailer.NewMailer(cfg.From, mailer.NewDialer(cfg))
	if err := mailer.NewWorker(queue, m, cfg, logger).Run(ctx); err != nil {
		logger.Error(ctx, err.Error())
	}
}
