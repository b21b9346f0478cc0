package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/database/mongoclient"
	"github.com/undeadblocks/marketstate/base/database/redisclient"
	"github.com/undeadblocks/marketstate/base/log"
	"github.com/undeadblocks/marketstate/base/metrics"
	bValidator "github.com/undeadblocks/marketstate/base/validator"
	mmiddleware "github.com/undeadblocks/marketstate/middleware"
	"github.com/undeadblocks/marketstate/service/bus"
	"github.com/undeadblocks/marketstate/service/keyvalue"
	keyvalue_memory "github.com/undeadblocks/marketstate/service/keyvalue/provider/memory"
	keyvalue_mongo "github.com/undeadblocks/marketstate/service/keyvalue/provider/mongo"
	keyvalue_redis "github.com/undeadblocks/marketstate/service/keyvalue/provider/redis"
	keyvalue_sqlite "github.com/undeadblocks/marketstate/service/keyvalue/provider/sqlite"
	auction_delivery "github.com/undeadblocks/marketstate/stores/auction/delivery/http"
	auction_repository "github.com/undeadblocks/marketstate/stores/auction/repository"
	auction_usecase "github.com/undeadblocks/marketstate/stores/auction/usecase"
	kpi_usecase "github.com/undeadblocks/marketstate/stores/kpi/usecase"
	listing_delivery "github.com/undeadblocks/marketstate/stores/listing/delivery/http"
	listing_repository "github.com/undeadblocks/marketstate/stores/listing/repository"
	listing_usecase "github.com/undeadblocks/marketstate/stores/listing/usecase"
	profile_delivery "github.com/undeadblocks/marketstate/stores/profile/delivery/http"
	profile_repository "github.com/undeadblocks/marketstate/stores/profile/repository"
	profile_usecase "github.com/undeadblocks/marketstate/stores/profile/usecase"
)

func init() {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	viper.SetConfigType("yaml")
	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	if viper.GetBool(`debug`) {
		log.SetDebug()
		log.Log().Info("Service RUN on DEBUG mode")
	}
}

func main() {
	// init echo
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	middL := mmiddleware.InitMiddleware()
	e.Use(middL.ResponseLogger())
	e.Use(middL.AddContext())
	e.Use(middleware.CORS())
	e.Validator = bValidator.NewCustomValidator(validator.New())

	context := ctx.Background()

	// init state backend
	backend := viper.GetString("store.backend")
	context.WithField("backend", backend).Info("init key-value store")

	var kv keyvalue.Store
	switch backend {
	case "", "memory":
		kv = keyvalue_memory.New()
	case "sqlite":
		store, err := keyvalue_sqlite.Open(viper.GetString("store.sqlite.path"))
		if err != nil {
			context.WithField("err", err).Panic("open sqlite store")
		}
		kv = store
	case "redis":
		pool := redisclient.MustConnectRedis(
			viper.GetString("store.redis.uri"),
			viper.GetString("store.redis.password"),
			redisclient.RedisParam{PoolMultiplier: viper.GetFloat64("store.redis.poolMultiplier")},
		)
		kv = keyvalue_redis.New("keyvalue", metrics.New("keyvalue"), pool)
	case "mongo":
		client := mongoclient.MustConnectMongoClient(
			viper.GetString("store.mongo.uri"),
			viper.GetString("store.mongo.authDBName"),
			viper.GetString("store.mongo.dbName"),
			viper.GetBool("store.mongo.enableSSL"),
			2,
		)
		kv = keyvalue_mongo.New(client)
	default:
		context.WithField("backend", backend).Panic("unknown store backend")
	}

	// init change bus, optionally bridged across processes over redis pub/sub
	var changeBus bus.Bus = bus.NewLocal()
	var bridge *bus.RedisBridge
	if uri := viper.GetString("bus.redis.uri"); uri != "" {
		context.Info("init redis bus bridge")
		pool := redisclient.MustConnectRedis(uri, viper.GetString("bus.redis.password"))
		b, err := bus.NewRedisBridge(context, changeBus, pool, metrics.New("bus"))
		if err != nil {
			context.WithField("err", err).Panic("start redis bus bridge")
		}
		changeBus = b
		bridge = b
	}

	// construct repository, usecase and delivery
	listingRepo := listing_repository.NewListing(kv)
	auctionRepo := auction_repository.NewAuction(kv)
	profileRepo := profile_repository.NewProfile(kv)

	listingUC := listing_usecase.NewListingUsecase(listingRepo, changeBus)
	auctionUC := auction_usecase.NewAuctionUsecase(auctionRepo, changeBus)
	profileUC := profile_usecase.NewProfileUsecase(profileRepo, changeBus)
	kpiUC := kpi_usecase.NewKpiUsecase(profileUC)

	listing_delivery.New(e, listingUC, profileUC)
	auction_delivery.New(e, auctionUC, profileUC)
	profile_delivery.New(e, profileUC, kpiUC)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok"})
	})

	go func() {
		if err := e.Start(viper.GetString("server.address")); err != nil && err != http.ErrServerClosed {
			log.Log().WithField("err", err).Error("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-quit
	log.Log().WithField("signal", sig).Info("received signal")

	if bridge != nil {
		bridge.Close()
	}

	shutdownCtx, cancel := ctx.WithTimeout(context, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Log().WithField("err", err).Error("shutting down the server")
	} else {
		log.Log().Info("shutdown server successfully")
	}
}
