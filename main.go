package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dan13ram/yusd-settlement/app"
	eth "github.com/dan13ram/yusd-settlement/eth/client"
	"github.com/dan13ram/yusd-settlement/models"
	log "github.com/sirupsen/logrus"
)

func absPath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		log.Fatal("[MAIN] Invalid path ", path, ": ", err)
	}
	return abs
}

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	var configPath string
	var envPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&envPath, "env", "", "path to env file")
	flag.Parse()

	app.InitConfig(absPath(configPath), absPath(envPath))
	app.InitLogger()
	app.InitDB()

	if app.Config.Ethereum.Enabled {
		eth.Client.ValidateNetwork()
	}

	deps, err := NewRuntime()
	if err != nil {
		log.Fatal("[MAIN] Error initializing runtime: ", err)
	}

	healthcheck := app.NewHealthCheck()

	serviceHealthMap := make(map[string]models.ServiceHealth)
	if app.Config.HealthCheck.ReadLastHealth {
		if lastHealth, err := healthcheck.FindLastHealth(); err == nil {
			for _, serviceHealth := range lastHealth.ServiceHealths {
				serviceHealthMap[serviceHealth.Name] = serviceHealth
			}
		} else {
			log.Warn("[MAIN] No last health found: ", err)
		}
	}

	var wg sync.WaitGroup
	var services []app.Service
	for _, named := range GetServiceFactories(deps) {
		services = append(services, CreateService(&wg, named.name, serviceHealthMap, named.factory))
	}
	healthcheck.SetServices(services)

	interval := time.Duration(app.Config.HealthCheck.IntervalMillis) * time.Millisecond
	services = append(services, app.NewRunnerService(app.HealthServiceName, healthcheck, &wg, interval))

	wg.Add(len(services))
	for _, service := range services {
		go service.Start()
	}
	log.Info("[MAIN] Started ", len(services), " services")

	gracefulStop := make(chan os.Signal, 1)
	done := make(chan bool, 1)
	signal.Notify(gracefulStop, syscall.SIGINT, syscall.SIGTERM)
	go waitForExitSignals(gracefulStop, done)
	<-done

	log.Debug("[MAIN] Gracefully shutting down server...")
	for _, service := range services {
		service.Stop()
	}
	wg.Wait()

	if err := app.DB.Disconnect(); err != nil {
		log.Error("[MAIN] Error disconnecting from database: ", err)
	}
	log.Info("[MAIN] Server gracefully stopped")
}

func waitForExitSignals(gracefulStop chan os.Signal, done chan bool) {
	sig := <-gracefulStop
	log.Debug("[MAIN] Got signal: ", sig)
	done <- true
}
