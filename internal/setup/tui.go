// Package setup contains the interactive configuration wizard.
package setup

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vadiminshakov/gridset/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(highlight).
			Bold(true).
			MarginTop(1)
)

// RunTUI launches the terminal configuration wizard and writes the result
// to the given path.
func RunTUI(outPath string) error {
	var (
		mode     string
		rpcURL   string
		market   string
		slotStr  string
		webAddr  string
		interval string
		confirm  bool
	)

	// defaults
	slotStr = "12459"
	webAddr = ":8080"
	interval = config.DefaultRefreshInterval.String()
	rpcURL = "http://localhost:8545"

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDSET CONSOLE SETUP"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Configure the energy-market console.\n"))

	fmt.Println(stepStyle.Render("STEP 1: DATA SOURCE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should market data come from?").
				Options(
					huh.NewOption("Demo only (static fallback order book)", "demo"),
					huh.NewOption("Live EnergyMarket contract", "live"),
				).
				Value(&mode),
		),
	).Run()
	if err != nil {
		return err
	}

	if mode == "live" {
		fmt.Print("\033[H\033[2J")
		fmt.Println(headerStyle.Render("GRIDSET CONSOLE SETUP"))
		fmt.Println(stepStyle.Render("STEP 2: CHAIN ENDPOINT"))
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Ethereum RPC URL").
					Value(&rpcURL).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("rpc url cannot be empty")
						}
						return nil
					}),
				huh.NewInput().
					Title("EnergyMarket contract address").
					Description("0x-prefixed, 20 bytes").
					Value(&market).
					Validate(func(s string) error {
						if !common.IsHexAddress(s) {
							return fmt.Errorf("not a valid contract address")
						}
						return nil
					}),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDSET CONSOLE SETUP"))
	fmt.Println(stepStyle.Render("STEP 3: CONSOLE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Initial time slot").
				Value(&slotStr).
				Validate(func(s string) error {
					if _, err := strconv.ParseUint(s, 10, 64); err != nil {
						return fmt.Errorf("must be a positive integer")
					}
					return nil
				}),
			huh.NewInput().
				Title("Listen address").
				Description("host:port, e.g. :8080").
				Value(&webAddr),
			huh.NewInput().
				Title("Order book refresh interval").
				Description("Duration string (e.g. 15s, 1m)").
				Value(&interval).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDSET CONSOLE SETUP"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf("Mode: %s\nRPC: %s\nMarket: %s\nSlot: %s\nWeb: %s\nRefresh: %s\n",
		mode, rpcURL, market, slotStr, webAddr, interval)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	slot, _ := strconv.ParseUint(slotStr, 10, 64)
	refreshInterval, _ := time.ParseDuration(interval)
	cfg := config.Config{
		TokenDecimals:   config.DefaultTokenDecimals,
		TimeSlot:        slot,
		WebAddr:         webAddr,
		RefreshInterval: refreshInterval,
	}
	if mode == "live" {
		cfg.RPCURL = rpcURL
		cfg.MarketAddress = market
	}

	if err := cfg.Save(outPath); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(highlight).Render(
		fmt.Sprintf("\nConfiguration saved to %s\nStarting console...", outPath)))
	time.Sleep(1500 * time.Millisecond)
	return nil
}
