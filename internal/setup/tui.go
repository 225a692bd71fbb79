package setup

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/optibot/config"
	"github.com/vadiminshakov/optibot/internal/clients"
)

// GeneratedConfigPath is where RunTUI stores the wizard result.
const GeneratedConfigPath = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

func step(title string) {
	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("OPTIBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(title))
}

// RunTUI launches the terminal configuration wizard and returns the written config path.
func RunTUI() (string, error) {
	d := config.DefaultConfigTmp()
	var (
		platform        = d.Platform
		symbol          = d.Symbol
		interval        = d.Interval
		session         = d.SessionFilter
		pollIntervalStr = d.PollInterval
		riskStr         = d.RiskPerTrade
		thresholdStr    = fmt.Sprint(d.ConfirmationThreshold)
		apiURL          = d.APIURL
		cashStr         = d.SimulateCash
		confirm         bool
	)

	// step 1: platform
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("OPTIBOT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Momentum options trading on Tradier.\n"))
	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should confirmed signals go?").
				Options(
					huh.NewOption("Paper trading (simulate)", config.PlatformSimulate),
					huh.NewOption("Tradier brokerage account", config.PlatformTradier),
				).
				Value(&platform),
			huh.NewSelect[string]().
				Title("Tradier environment").
				Options(
					huh.NewOption("Sandbox", clients.TradierSandboxURL),
					huh.NewOption("Production", clients.TradierProductionURL),
				).
				Value(&apiURL),
		),
	).Run()
	if err != nil {
		return "", err
	}

	// underlying
	step("STEP 2: UNDERLYING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Symbol").
				Description("Optionable underlying, e.g. SPY").
				Value(&symbol).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("symbol cannot be empty")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 3: TIMING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Bar interval").
				Options(
					huh.NewOption("1 minute", "1min"),
					huh.NewOption("5 minutes", "5min"),
					huh.NewOption("15 minutes", "15min"),
				).
				Value(&interval),
			huh.NewSelect[string]().
				Title("Session").
				Options(
					huh.NewOption("Regular hours only", "open"),
					huh.NewOption("Include extended hours", "all"),
				).
				Value(&session),
			huh.NewInput().
				Title("Poll Interval").
				Description("Duration string (e.g. 30s, 1m, 5m)").
				Value(&pollIntervalStr).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 4: RISK")
	fields := []huh.Field{
		huh.NewInput().
			Title("Budget per trade").
			Description("Account currency spent on each confirmed signal").
			Value(&riskStr).
			Validate(validatePositiveDecimal),
		huh.NewInput().
			Title("Confirmation threshold").
			Description("Consecutive matching signals before trading (>= 1)").
			Value(&thresholdStr).
			Validate(validateThreshold),
	}
	if platform == config.PlatformSimulate {
		fields = append(fields, huh.NewInput().
			Title("Paper cash").
			Value(&cashStr).
			Validate(validatePositiveDecimal))
	}
	if err = huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return "", err
	}

	step("FINAL CONFIRMATION")

	summary := fmt.Sprintf(
		"Platform: %s\nSymbol: %s\nInterval: %s (%s)\nPoll: %s\nBudget: %s\nThreshold: %s\n",
		platform, strings.ToUpper(symbol), interval, session, pollIntervalStr, riskStr, thresholdStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render(
		fmt.Sprintf("Set %s (and %s for live trading) in the environment or .env.", config.EnvAccessToken, config.EnvAccountID)))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}

	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	cfgTmp, err := buildConfig(platform, symbol, interval, session, pollIntervalStr, riskStr, thresholdStr, apiURL, cashStr)
	if err != nil {
		return "", err
	}

	if err := config.WriteYaml(GeneratedConfigPath, []config.ConfigTmp{cfgTmp}); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", GeneratedConfigPath)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return GeneratedConfigPath, nil
}

func buildConfig(platform, symbol, interval, session, pollInterval, risk, threshold, apiURL, cash string) (config.ConfigTmp, error) {
	n, err := parseThreshold(threshold)
	if err != nil {
		return config.ConfigTmp{}, err
	}

	cfgTmp := config.DefaultConfigTmp()
	cfgTmp.Platform = platform
	cfgTmp.Symbol = strings.ToUpper(strings.TrimSpace(symbol))
	cfgTmp.Interval = interval
	cfgTmp.SessionFilter = session
	cfgTmp.PollInterval = pollInterval
	cfgTmp.RiskPerTrade = risk
	cfgTmp.ConfirmationThreshold = n
	cfgTmp.APIURL = apiURL
	if platform == config.PlatformSimulate {
		cfgTmp.SimulateCash = cash
	}
	return cfgTmp, nil
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validatePositiveDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateThreshold(s string) error {
	_, err := parseThreshold(s)
	return err
}

func parseThreshold(s string) (int, error) {
	var n int
	if _, err := fmt.Sscan(s, &n); err != nil || n < 1 {
		return 0, fmt.Errorf("must be an integer >= 1")
	}
	return n, nil
}
