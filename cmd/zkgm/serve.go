package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"zkgm/api"
	"zkgm/history"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the codec, salt, channel, status, balance and history endpoints over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := []api.Option{api.WithLogger(logger)}
		if reg, err := channelRegistry(); err == nil {
			opts = append(opts, api.WithChannels(reg))
		} else {
			logger.WithError(err).Warn("channel lookups disabled")
		}
		for _, chain := range cfg.Chains {
			svc, err := dialServices(ctx, chain)
			if err != nil {
				logger.WithError(err).WithField("chain", chain.UniversalChainID).Warn("chain lookups disabled")
				continue
			}
			if svc.status != nil {
				opts = append(opts, api.WithStatus(chain.UniversalChainID, svc.status))
			}
			if svc.balances != nil {
				opts = append(opts, api.WithBalances(chain.UniversalChainID, svc.balances))
			}
		}
		if cfg.History.DSN != "" {
			store, err := history.Open(ctx, cfg.History.DSN)
			if err != nil {
				return err
			}
			opts = append(opts, api.WithHistory(store))
		} else {
			logger.Warn("history.dsn not set, submission history disabled")
		}

		addr := listenAddr
		if addr == "" {
			addr = cfg.API.Listen
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.New(cfg.InstructionCodec(), opts...).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			logger.WithField("addr", addr).Info("server starting")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (default api.listen)")
}
