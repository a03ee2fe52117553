package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"github.com/token-lab/token-lab-server/pkg/ipfs"
	labconfig "github.com/token-lab/token-lab-server/pkg/lab/config"
	"github.com/token-lab/token-lab-server/pkg/lab/fees"
	"github.com/token-lab/token-lab-server/pkg/lab/metadata"
	"github.com/token-lab/token-lab-server/pkg/lab/mint"
	"github.com/token-lab/token-lab-server/pkg/lab/minter"
	"github.com/token-lab/token-lab-server/pkg/lab/server/web"
	"github.com/token-lab/token-lab-server/pkg/metrics"
	"github.com/token-lab/token-lab-server/pkg/objectstorage"
	"github.com/token-lab/token-lab-server/pkg/pricing"
	"github.com/token-lab/token-lab-server/pkg/solana"
)

const appName = "token-lab-server"

func main() {
	log := logrus.StandardLogger().WithField("type", "cmd/server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	osSigCh := make(chan os.Signal, 1)
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	go func() {
		<-osSigCh
		log.Info("interrupt received, shutting down")
		cancel()
	}()

	metricsProvider := setupMetrics(log)
	configureLogger(metricsProvider)
	if metricsProvider != nil {
		ctx = metrics.NewContext(ctx, metricsProvider)
	}

	conf := labconfig.WithEnvConfigs()()

	solanaClient := solana.New(conf.RpcEndpoint.Get(ctx))

	pinataBaseUrl := conf.PinataApiBaseUrl.Get(ctx)
	if len(pinataBaseUrl) == 0 {
		pinataBaseUrl = ipfs.DefaultApiBaseUrl
	}
	pinner := ipfs.NewClient(pinataBaseUrl, conf.PinataBearerToken.Get(ctx))

	priceBaseUrl := conf.PriceApiBaseUrl.Get(ctx)
	if len(priceBaseUrl) == 0 {
		priceBaseUrl = pricing.DefaultApiBaseUrl
	}
	priceOracle := pricing.NewClient(priceBaseUrl)

	assets, err := objectstorage.NewFirebaseClient(
		ctx,
		conf.GoogleApplicationCredentials.Get(ctx),
		conf.FirebaseStorageBucket.Get(ctx),
	)
	if err != nil {
		log.WithError(err).Error("failed to initialize object storage")
		os.Exit(1)
	}

	orchestrator := minter.NewOrchestrator(
		conf,
		fees.NewCharger(conf, priceOracle, solanaClient),
		metadata.NewUploader(conf, pinner),
		metadata.NewAttacher(solanaClient),
		mint.NewService(solanaClient),
		mint.NewRevoker(solanaClient),
		assets,
	)

	server := web.NewServer(conf, orchestrator, assets, solanaClient)
	if err := server.Run(ctx); err != nil {
		log.WithError(err).Error("http server stopped")
		os.Exit(1)
	}
}

func setupMetrics(log *logrus.Entry) *newrelic.Application {
	if len(os.Getenv("NEW_RELIC_LICENSE_KEY")) == 0 {
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigFromEnvironment(),
		newrelic.ConfigAppName(appName),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		log.WithError(err).Error("error connecting to new relic")
		os.Exit(1)
	}
	return app
}

func configureLogger(metricsProvider *newrelic.Application) {
	if metricsProvider != nil {
		logrus.SetFormatter(metrics.NewCustomNewRelicLogFormatter(metricsProvider, &logrus.JSONFormatter{}))
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	if level, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil {
		logrus.SetLevel(level)
	}

	logrus.SetOutput(os.Stdout)
}
