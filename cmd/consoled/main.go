package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/incident-console/backend/internal/actionsvc"
	"github.com/incident-console/backend/internal/clients/chat"
	"github.com/incident-console/backend/internal/clients/llm"
	metricsclient "github.com/incident-console/backend/internal/clients/metrics"
	"github.com/incident-console/backend/internal/clients/simulator"
	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/internal/httpapi"
	"github.com/incident-console/backend/internal/incident"
	"github.com/incident-console/backend/internal/knowledge"
	"github.com/incident-console/backend/internal/lifecycle"
	"github.com/incident-console/backend/internal/maintenance"
	"github.com/incident-console/backend/internal/monitor"
	"github.com/incident-console/backend/internal/notify"
	"github.com/incident-console/backend/internal/report"
	"github.com/incident-console/backend/internal/simulatorhost"
	"github.com/incident-console/backend/internal/state"
	"github.com/incident-console/backend/pkg/config"
	"github.com/incident-console/backend/pkg/logger"
	"github.com/incident-console/backend/pkg/metrics"
)

const shutdownTimeout = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLog := logger.New(logger.LoggingConfig{Level: cfg.Logging.Level})
	metrics.Init("incident-console")

	scenarios := domain.SeedScenarios()
	stateStore := state.New(scenarios, cfg.Monitor.Window)

	knowledgeStore, err := knowledge.New(cfg.DataDir)
	if err != nil {
		appLog.WithError(err).Fatal("initialise knowledge store")
	}
	if err := knowledgeStore.Bootstrap(scenarios); err != nil {
		appLog.WithError(err).Fatal("bootstrap knowledge store")
	}

	metricsClient := metricsclient.New()
	chatClient := chat.New()
	llmClient := llm.New(cfg.LLM.APIKey)

	simulatorBaseURL := fmt.Sprintf("http://%s:%d", cfg.Simulator.Host, cfg.Simulator.Port)
	simulatorClient, err := simulator.New(simulatorBaseURL)
	if err != nil {
		appLog.WithError(err).Fatal("initialise simulator client")
	}

	notifySink := notify.New(notify.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		TLS:      cfg.SMTP.TLS,
		From:     cfg.SMTP.From,
	}, stateStore)

	reportGenerator := report.New(llmClient, knowledgeStore)
	actionService := actionsvc.New(stateStore, knowledgeStore, simulatorClient, notifySink)
	incidentPipeline := incident.New(stateStore, knowledgeStore, reportGenerator, actionService, chatClient)
	samplingMonitor := monitor.New(stateStore, metricsClient, incidentPipeline, knowledgeStore, cfg.Monitor.Interval)
	maintenanceScheduler := maintenance.New(stateStore, knowledgeStore)

	simulatorAddr := fmt.Sprintf("%s:%d", cfg.Simulator.Host, cfg.Simulator.Port)
	simulatorHost := simulatorhost.New(simulatorAddr)

	api := httpapi.New(stateStore, knowledgeStore, metricsClient, chatClient, actionService)
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := httpapi.NewServer(serverAddr, api)

	manager := lifecycle.NewManager()
	for _, svc := range []lifecycle.Service{simulatorHost, samplingMonitor, maintenanceScheduler, httpServer} {
		if err := manager.Register(svc); err != nil {
			appLog.WithError(err).Fatal("register lifecycle service")
		}
	}

	rootCtx := context.Background()
	if err := manager.Start(rootCtx); err != nil {
		appLog.WithError(err).Fatal("start services")
	}
	appLog.WithField("addr", serverAddr).Info("incident response console listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		appLog.WithError(err).Fatal("shutdown")
	}
}
