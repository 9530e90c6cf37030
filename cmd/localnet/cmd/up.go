package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/onflow/localnet/admin"
	"github.com/onflow/localnet/admin/commands"
	"github.com/onflow/localnet/module"
	"github.com/onflow/localnet/module/component"
	"github.com/onflow/localnet/module/irrecoverable"
	"github.com/onflow/localnet/module/lifecycle"
	"github.com/onflow/localnet/module/metrics"
	"github.com/onflow/localnet/module/util"
)

var flagClean bool

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start a run and supervise it in the foreground until interrupted",
	Long: `Starts a run like start, then watches its nodes. A node exiting on its own fails the run and stops the
remaining nodes. On interrupt every node is stopped. When admin.addr is set, run status, node logs and
orchestrator metrics are served over HTTP while the run is up.`,
	RunE: up,
}

func init() {
	rootCmd.AddCommand(upCmd)
	addRunFlags(upCmd)

	upCmd.Flags().BoolVar(&flagClean, "clean", false, "remove every artifact of the run after it stopped")
	upCmd.Flags().String("admin-addr", "", "listen address of the admin server, empty disables it")
	bindFlag(upCmd.Flags(), "admin-addr", "admin.addr")
}

func up(cmd *cobra.Command, _ []string) error {
	params, err := runParams(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// metrics are only collected when the admin server can serve them
	var collector module.LocalnetMetrics = metrics.NewNoopCollector()
	var server *admin.Server
	if cfg.Admin.Addr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.NewLocalnetCollector(registry)
		server, err = admin.NewServer(log, cfg.Admin.Addr, registry)
		if err != nil {
			return err
		}
	}
	controller := lifecycle.NewController(log, cfg).AddEventHandler(collector.OnEvent)

	builder := component.NewComponentManagerBuilder()
	if server != nil {
		commands.Register(server, controller)
		builder.AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
			server.Start(ctx)
			if err := util.WaitClosed(ctx, server.Ready()); err != nil {
				return
			}
			log.Info().Str("addr", server.Addr()).Msg("admin server listening")
			ready()
			<-server.Done()
		})
	}
	builder.AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
		ready()
		if err := controller.Start(ctx, params); err != nil {
			ctx.Throw(err)
		}
		log.Info().Msg("run is up, press Ctrl-C to stop it")
		if err := controller.Supervise(ctx); err != nil {
			ctx.Throw(err)
		}
	})

	var result *multierror.Error
	if err := component.Run(ctx, builder.Build()); err != nil {
		result = multierror.Append(result, err)
	}

	log.Info().Msg("stopping run")
	if err := controller.Stop(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := controller.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if flagClean {
		if err := controller.Clean(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
