// Command joynrd runs a joynr cluster-controller-less runtime process:
// the message dispatcher, local capabilities directory, and their
// gRPC transport, all in a single binary. Wiring and flag handling
// follow the teacher's cli/cmd/root.go shape (a cobra root command,
// sirupsen/logrus for output) adapted to a long-running daemon instead
// of a one-shot CLI invocation.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joynr-go/joynr/pkg/accesscontrol"
	"github.com/joynr-go/joynr/pkg/admin"
	"github.com/joynr-go/joynr/pkg/capabilities"
	"github.com/joynr-go/joynr/pkg/dispatcher"
	"github.com/joynr-go/joynr/pkg/globaldirectory"
	"github.com/joynr-go/joynr/pkg/interpreter"
	"github.com/joynr-go/joynr/pkg/jsoncodec"
	"github.com/joynr-go/joynr/pkg/joynrconfig"
	"github.com/joynr-go/joynr/pkg/joynrlog"
	"github.com/joynr-go/joynr/pkg/joynrmetrics"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/publication"
	"github.com/joynr-go/joynr/pkg/replycallers"
	"github.com/joynr-go/joynr/pkg/requestcallers"
	"github.com/joynr-go/joynr/pkg/router"
	"github.com/joynr-go/joynr/pkg/subscription"
	"github.com/joynr-go/joynr/pkg/timerservice"
	"github.com/joynr-go/joynr/pkg/transport/grpctransport"
	"github.com/joynr-go/joynr/pkg/workerpool"
)

var logger = joynrlog.For("joynrd")

var configFile string

func main() {
	joynrlog.Init()

	root := &cobra.Command{
		Use:   "joynrd",
		Short: "joynrd runs a joynr message dispatcher and capabilities directory",
		RunE:  run,
	}
	root.Flags().StringVar(&configFile, "config", "", "path to a YAML or JSON config file (optional; JOYNR_-prefixed env vars also apply)")

	if err := root.Execute(); err != nil {
		logger.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := joynrconfig.Load(configFile)
	if err != nil {
		return err
	}

	timers := timerservice.New()
	defer timers.Shutdown()

	msgRouter := router.New(cfg.ExpirySweepInterval)

	var access accesscontrol.Controller = accesscontrol.AllowAll{}
	if cfg.EnableAccessController && cfg.AccessControllerAudit {
		access = accesscontrol.Audit{Delegate: accesscontrol.AllowAll{}}
	}

	var persistence capabilities.Persistence = capabilities.NoopPersistence{}
	if cfg.PersistenceEnabled {
		persistence = capabilities.FilePersistence{Path: cfg.PersistenceFile}
	}

	var globalClient globaldirectory.Client
	if cfg.GlobalDirectoryAddr != "" {
		c, err := globaldirectory.Dial(cfg.GlobalDirectoryAddr)
		if err != nil {
			return err
		}
		globalClient = c
	}

	pool := workerpool.New(cfg.WorkerPoolSize, cfg.WorkerQueueSize)
	defer pool.Shutdown()

	replyCallers := replycallers.New(cfg.ExpirySweepInterval)
	requestCallers := requestcallers.New()
	registrar := interpreter.NewRegistrar()
	subManager := subscription.New(timers)
	pubManager := publication.New(timers)

	gt, err := grpctransport.New(cfg.GRPCAddr, func(id model.ParticipantID) (string, bool) {
		addr, ok := msgRouter.Resolve(id)
		if !ok {
			return "", false
		}
		return string(addr), true
	})
	if err != nil {
		return err
	}
	defer gt.Close()

	d := dispatcher.New(pool, gt, jsoncodec.Codec{}, replyCallers, requestCallers, registrar)
	d.RegisterPublicationManager(pubManager)
	d.RegisterSubscriptionManager(subManager)
	gt.SetReceiveHandler(d.Receive)

	dirCfg := capabilities.Config{
		ClusterControllerID:       cfg.ClusterControllerID,
		ExpirySweepInterval:       cfg.ExpirySweepInterval,
		HeartbeatInterval:         cfg.HeartbeatInterval,
		GlobalCacheCleanupInterval: cfg.ExpirySweepInterval,
		DefaultCacheMaxAge:        cfg.DefaultCacheMaxAge,
		AddressProvider:           func() []byte { return []byte(cfg.GRPCAddr) },
	}
	dir := capabilities.New(dirCfg, msgRouter, globalClient, access, persistence, timers)
	defer dir.Shutdown()

	status := capabilities.StatusProvider{Dir: dir, Subs: subManager, Pubs: pubManager}
	timers.Every(cfg.ExpirySweepInterval, status.RefreshGauges)
	timers.Every(cfg.ExpirySweepInterval, func() {
		joynrmetrics.WorkerPoolQueueDepth.Set(float64(pool.QueueDepth()))
	})

	adminServer := admin.NewServer(cfg.AdminAddr, false, status)
	go func() {
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("admin server stopped: %v", err)
		}
	}()

	logger.Infof("joynrd listening: grpc=%s admin=%s", cfg.GRPCAddr, cfg.AdminAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	return adminServer.Close()
}
