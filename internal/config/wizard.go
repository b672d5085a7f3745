package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result
// to path and returns it. Values already in the file are offered as
// defaults.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to csbot! Let's connect your Cafe24 shop.")
	fmt.Println()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// 1. Provider selection.
	providers := []string{string(ProviderOpenAI), string(ProviderAnthropic), string(ProviderGoogle)}
	providerPrompt := promptui.Select{
		Label:     "Select LLM provider",
		Items:     providers,
		CursorPos: indexOf(providers, string(cfg.Provider)),
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	// 2. Model.
	model := cfg.Model
	if provider != cfg.Provider || model == "" {
		model = DefaultModel(provider)
	}
	if model, err = ask("Model", model, nil); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Shop.
	mallID, err := ask("Cafe24 mall id", cfg.Cafe24.MallID, required)
	if err != nil {
		return nil, fmt.Errorf("mall id: %w", err)
	}
	clientID, err := ask("Cafe24 app client id", cfg.Cafe24.ClientID, required)
	if err != nil {
		return nil, fmt.Errorf("client id: %w", err)
	}
	secretPrompt := promptui.Prompt{
		Label:    "Cafe24 app client secret",
		Mask:     '*',
		Validate: required,
		Default:  cfg.Cafe24.ClientSecret,
	}
	clientSecret, err := secretPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("client secret: %w", err)
	}

	// 4. Boards.
	boardsStr, err := ask("Board ids to watch (comma-separated)", strings.Join(cfg.Boards, ","), boardList)
	if err != nil {
		return nil, fmt.Errorf("boards: %w", err)
	}

	// 5. Public URL and shop name.
	baseURL, err := ask("Public base URL of this server (for OAuth and notification links)", cfg.Server.BaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	shopName, err := ask("Shop name used in answers", cfg.Shop.Name, nil)
	if err != nil {
		return nil, fmt.Errorf("shop name: %w", err)
	}

	cfg.Provider = provider
	cfg.Model = model
	cfg.Cafe24.MallID = mallID
	cfg.Cafe24.ClientID = clientID
	cfg.Cafe24.ClientSecret = clientSecret
	cfg.Boards = splitAndTrim(boardsStr)
	cfg.Server.BaseURL = baseURL
	cfg.Shop.Name = shopName

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Check for API key.
	if envVar := APIKeyEnvVar(provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment or .env before running csbot server.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	if cfg.Server.BaseURL != "" {
		fmt.Printf("Open %s/cafe24/install to authorize the app.\n", strings.TrimRight(cfg.Server.BaseURL, "/"))
	}
	return cfg, nil
}

func ask(label, def string, validate promptui.ValidateFunc) (string, error) {
	p := promptui.Prompt{Label: label, Default: def, Validate: validate}
	v, err := p.Run()
	return strings.TrimSpace(v), err
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

// boardList accepts an empty list or comma-separated numeric board ids.
func boardList(s string) error {
	for _, id := range splitAndTrim(s) {
		if _, err := strconv.Atoi(id); err != nil {
			return fmt.Errorf("board id %q is not a number", id)
		}
	}
	return nil
}

func indexOf(items []string, v string) int {
	for i, it := range items {
		if it == v {
			return i
		}
	}
	return 0
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
