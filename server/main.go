// Copyright (C) 2025 The Redrock Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Redrock is a Redfish management-API frontend. This binary wires the
// credential store, the session manager and the HTTP surface together and
// runs the listener until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/redrock-project/redrock/server/accounts"
	"github.com/redrock-project/redrock/server/config"
	"github.com/redrock-project/redrock/server/log"
	"github.com/redrock-project/redrock/server/router"
	"github.com/redrock-project/redrock/server/session"
	"github.com/redrock-project/redrock/server/store"
)

var (
	version   = "dev"
	buildTime = ""
)

const shutdownGrace = 10 * time.Second

func run() error {
	configPath := pflag.String("config", "", "path to the configuration file")
	showVersion := pflag.Bool("version", false, "print version and exit")

	pflag.Parse()

	if *showVersion {
		fmt.Printf("redrock version=%s build_time=%s\n", version, buildTime)

		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log.SetupLogging(cfg.Server.LogLevel, cfg.Server.LogJSON, cfg.Server.Instance)

	db, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	accountStore, err := accounts.NewStore(db)
	if err != nil {
		return err
	}

	tracker := accounts.NewTracker()
	authenticator := accounts.NewAuthenticator(accountStore, tracker)

	sessions, err := session.NewManager(db)
	if err != nil {
		return err
	}

	engine := router.New(cfg, accountStore, authenticator, sessions)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Address, strconv.Itoa(cfg.Server.Port)),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Logger.Info("server starting",
			"address", srv.Addr,
			"version", version,
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Logger.Info("server shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)

	defer cancel()

	return srv.Shutdown(ctx)
}

func main() {
	if err := run(); err != nil {
		log.Logger.Error("server terminated", "error", err)
		os.Exit(1)
	}
}
