/*
bot-google-play collects Google Play Console acquisition data for one app,
reconciles it into four normalized tables and delivers them.
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/olekukonko/tablewriter"
	"github.com/xyla-io/bot-google-play/internal/browser"
	"github.com/xyla-io/bot-google-play/internal/config"
	"github.com/xyla-io/bot-google-play/internal/date"
	"github.com/xyla-io/bot-google-play/internal/googleplay"
	"github.com/xyla-io/bot-google-play/internal/interact"
	"github.com/xyla-io/bot-google-play/internal/log"
	"github.com/xyla-io/bot-google-play/internal/maneuver"
	"github.com/xyla-io/bot-google-play/internal/output"
	"github.com/xyla-io/bot-google-play/internal/reconcile"
	"gopkg.in/yaml.v3"
)

var version = "dev"

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

type cli struct {
	Version VersionFlag `short:"v" long:"version" help:"Print the version and exit."`
	Debug   bool        `long:"debug" help:"Set log level to 'debug' and store screenshots and html of failed lookups."`

	Scrape  ScrapeCmd  `cmd:"" help:"Sign in to the Play Console, scrape, process and deliver acquisition data"`
	Process ProcessCmd `cmd:"" help:"Process the downloads of an existing run directory"`
	Config  ConfigCmd  `cmd:"" help:"Print the resolved configuration with secrets redacted"`
}

type ScrapeCmd struct {
	Config  string `short:"c" default:"./config.yaml" help:"The location of the configuration file."`
	Summary bool   `short:"s" help:"Print a summary of the flight at the end."`
}

func (sc *ScrapeCmd) Run(ctx context.Context) error {
	cfg, err := config.Load(sc.Config)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	if err := cfg.Validate(); err != nil {
		slog.Error(fmt.Sprintf("invalid configuration: %v", err))
		return err
	}

	deliverer, err := output.NewDeliverer(&cfg.Delivery)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	user, err := interact.New(cfg.Interact)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	chrome, err := browser.NewChrome(cfg.Browser)
	if err != nil {
		slog.Error(fmt.Sprintf("failed to start the browser: %v", err))
		return err
	}
	defer chrome.Close()

	pilot := googleplay.NewPilot(cfg, chrome, user, deliverer)
	engine := maneuver.NewEngine[*googleplay.Pilot](&progress{logger: slog.With(slog.String("app", cfg.AppID))})
	err = engine.Fly(ctx, pilot, &googleplay.GooglePlay{})
	if sc.Summary {
		printFlightLog(engine.FlightLog())
	}
	if err != nil {
		slog.Error(fmt.Sprintf("run failed at stage '%s': %v", pilot.Stage(), err))
		return err
	}
	slog.Info("run completed")
	return nil
}

type ProcessCmd struct {
	Dir     string `short:"d" required:"" type:"existingdir" help:"The run directory to process."`
	Config  string `short:"c" help:"The location of the configuration file. If not set, the configuration is read from the environment."`
	Deliver bool   `short:"D" help:"Deliver the processed data."`
	Summary bool   `short:"s" help:"Print a summary of the processed tables."`
}

func (pc *ProcessCmd) Run(ctx context.Context) error {
	var cfg *config.Config
	var err error
	if pc.Config != "" {
		cfg, err = config.Load(pc.Config)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	if !pc.Deliver {
		// nothing is delivered, so no delivery settings are needed
		cfg.Delivery.Type = output.STDOUT_DELIVERY_TYPE
	}
	if err := cfg.ValidateProcessing(); err != nil {
		slog.Error(fmt.Sprintf("invalid configuration: %v", err))
		return err
	}

	p := reconcile.NewProcessor(pc.Dir, cfg.ScrapePolicy)
	if err := p.Process(ctx); err != nil {
		slog.Error(err.Error())
		return err
	}
	if err := p.Save(ctx); err != nil {
		slog.Error(err.Error())
		return err
	}
	if pc.Summary {
		printTables(p.Summaries())
	}
	if !pc.Deliver {
		return nil
	}

	deliverer, err := output.NewDeliverer(&cfg.Delivery)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	appID := cfg.AppID
	if appID == "" {
		// <output_dir>/google_play/<app_id>/<timestamp>
		appID = filepath.Base(filepath.Dir(filepath.Clean(pc.Dir)))
	}
	d, err := googleplay.NewDelivery(p, cfg.CompanyName, appID)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	if err := deliverer.Deliver(ctx, d); err != nil {
		slog.Error(fmt.Sprintf("delivery failed: %v", err))
		return err
	}
	slog.Info(fmt.Sprintf("delivered %s", d.Archive))
	return nil
}

type ConfigCmd struct {
	Config string `short:"c" default:"./config.yaml" help:"The location of the configuration file."`
}

func (cc *ConfigCmd) Run() error {
	cfg, err := config.Load(cc.Config)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	r := cfg.Redacted()
	yamlData, err := yaml.Marshal(&r)
	if err != nil {
		slog.Error(fmt.Sprintf("error while marshalling. %v", err))
		return err
	}
	fmt.Print(string(yamlData))
	if err := cfg.Validate(); err != nil {
		slog.Warn(fmt.Sprintf("the configuration is not valid for a scrape run: %v", err))
	}
	return nil
}

// progress logs the steps directly below the root of a flight.
type progress struct {
	logger *slog.Logger
}

func (p *progress) OnAttempt(r *maneuver.Record) {
	if r.Depth == 1 {
		p.logger.Info(fmt.Sprintf("starting %s", r.Name))
	}
}

func (p *progress) OnComplete(r *maneuver.Record) {
	if r.Depth == 1 && r.State == maneuver.Succeeded {
		p.logger.Info(fmt.Sprintf("finished %s in %v", r.Name, r.Duration.Round(10 * time.Millisecond)))
	}
}

func printFlightLog(root *maneuver.Record) {
	if root == nil {
		return
	}
	slog.Info("printing flight summary")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Maneuver", "State", "Duration"})
	red := []tablewriter.Colors{{tablewriter.Normal, tablewriter.FgRedColor}, {tablewriter.Normal, tablewriter.FgRedColor}, {tablewriter.Normal, tablewriter.FgRedColor}}
	nrManeuvers, nrFailed := 0, 0
	root.Walk(func(r *maneuver.Record) {
		// primitives below the third level are too noisy for a summary
		if r.Depth > 2 {
			return
		}
		nrManeuvers++
		row := []string{strings.Repeat("  ", r.Depth) + r.Name, r.State.String(), r.Duration.Round(10 * time.Millisecond).String()}
		if r.State == maneuver.Failed {
			nrFailed++
			table.Rich(row, red)
		} else {
			table.Append(row)
		}
	})
	table.SetFooter([]string{"total", strconv.Itoa(nrFailed) + " failed", strconv.Itoa(nrManeuvers)})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.SetBorder(false)
	table.Render()
}

func printTables(summaries []reconcile.Summary) {
	slog.Info("printing table summary")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Table", "Rows", "Sources", "From", "To", "Total"})
	rows := 0
	for _, s := range summaries {
		rows += s.Rows
		table.Append([]string{
			s.Table,
			strconv.Itoa(s.Rows),
			strings.Join(s.Sources, ", "),
			s.MinDate.Format(date.ISOLayout),
			s.MaxDate.Format(date.ISOLayout),
			strconv.FormatFloat(s.Total, 'f', -1, 64),
		})
	}
	table.SetFooter([]string{"total", strconv.Itoa(rows), "", "", "", ""})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.SetBorder(false)
	table.Render()
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	cli := cli{
		Version: VersionFlag(getVersion()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx := kong.Parse(&cli,
		kong.Vars{
			"version": string(cli.Version),
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Debug = cli.Debug
	log.InitializeDefaultLogger()

	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
