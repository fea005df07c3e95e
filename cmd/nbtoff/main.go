package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/kardianos/service"
	"github.com/stone-age-io/nbtoff/internal/app"
)

var version = "dev" // set via -ldflags at build time

func main() {
	configPath := flag.String("config", "", "path to config yaml (default: platform config path)")
	hostsFlag := flag.String("hosts", "", "comma-separated target hosts (overrides config; empty triggers directory discovery)")
	local := flag.Bool("local", false, "enforce on this machine only, skipping resolution and dispatch")
	jsonOut := flag.Bool("json", false, "with -local: print the result as JSON on stdout")
	svcAction := flag.String("service", "", "service control action: install, uninstall, start, stop, run")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	a, err := app.New(*configPath, version)
	if err != nil {
		log.Fatal(err)
	}

	explicit := a.Hosts()
	if *hostsFlag != "" {
		explicit = splitHosts(*hostsFlag)
	}

	switch {
	case *local:
		if err := a.RunLocal(a.Context(), *jsonOut); err != nil {
			a.Shutdown()
			log.Fatal(err)
		}
		a.Shutdown()

	case *svcAction != "":
		if err := runService(a, explicit, *svcAction); err != nil {
			log.Fatal(err)
		}

	case a.ScheduleEnabled():
		if err := a.RunScheduled(explicit); err != nil {
			log.Fatal(err)
		}

	default:
		err := a.EnforceOnce(a.Context(), explicit)
		a.Shutdown()
		if err != nil {
			log.Fatal(err)
		}
	}
}

func splitHosts(s string) []string {
	parts := strings.Split(s, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			hosts = append(hosts, p)
		}
	}
	return hosts
}

// program adapts the app to the OS service manager for scheduled mode
type program struct {
	app      *app.App
	explicit []string
}

func (p *program) Start(s service.Service) error {
	go func() {
		if err := p.app.RunScheduled(p.explicit); err != nil {
			log.Print(err)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	return p.app.Shutdown()
}

func runService(a *app.App, explicit []string, action string) error {
	svcConfig := &service.Config{
		Name:        "nbtoff",
		DisplayName: "NetBIOS Disable Enforcement",
		Description: "Periodically force-disables NetBIOS over TCP/IP across the fleet",
		Arguments:   []string{"-service", "run"},
	}

	s, err := service.New(&program{app: a, explicit: explicit}, svcConfig)
	if err != nil {
		return err
	}

	if action == "run" {
		return s.Run()
	}

	if err := service.Control(s, action); err != nil {
		return fmt.Errorf("service %s: %w", action, err)
	}
	fmt.Fprintf(os.Stderr, "service %s: done\n", action)
	return nil
}
