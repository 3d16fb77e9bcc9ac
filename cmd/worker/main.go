package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/surveyplot/internal/adapters/nats"
	"github.com/samirrijal/surveyplot/internal/adapters/postgres"
	"github.com/samirrijal/surveyplot/internal/core/domain"
	"github.com/samirrijal/surveyplot/internal/core/ports"
	"github.com/samirrijal/surveyplot/internal/core/usecases"
	"github.com/samirrijal/surveyplot/internal/pkg/config"
	"github.com/samirrijal/surveyplot/internal/pkg/logging"
	"github.com/samirrijal/surveyplot/internal/workflows"
)

func main() {
	cfg, err := config.Load("surveyplot-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("surveyplot-worker", os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer publisher.Close()

	survey := usecases.NewSurveyService(nil, usecases.SurveyOptions{
		PrecisionThreshold: cfg.Survey.PrecisionThreshold,
		Labels:             cfg.Survey.LabelOptions(),
		ViewPadding:        cfg.Survey.ViewPadding,
	})
	plots := usecases.NewPlotService(postgres.NewPlotRepo(db), publisher, survey)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.ImportWorkflow)
	w.RegisterActivity(&workflows.ImportActivities{
		Plots:     plots,
		Publisher: publisher,
	})

	// Queued imports start one workflow each; the request ID keeps
	// redeliveries on the same execution.
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	if err := startImports(ctx, sub, c, cfg.Temporal.TaskQueue); err != nil {
		log.Fatalf("subscribe import requests: %v", err)
	}

	slog.Info("import worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func startImports(ctx context.Context, sub ports.EventSubscriber, c client.Client, taskQueue string) error {
	return sub.SubscribeImportRequests(ctx, func(ctx context.Context, req *domain.ImportRequest) error {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        workflows.WorkflowIDPrefix + req.RequestID,
			TaskQueue: taskQueue,
		}, workflows.ImportWorkflow, workflows.NewImportInput(req))
		if err != nil {
			return err
		}
		slog.Info("import workflow started", "request_id", req.RequestID, "workflow_id", run.GetID(), "run_id", run.GetRunID())
		return nil
	})
}
