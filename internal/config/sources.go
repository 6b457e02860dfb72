package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source kinds for the FX chain. A json source accepts any non-empty payload
// verbatim; a markup source is scraped around its label.
const (
	SourceKindJSON   = "json"
	SourceKindMarkup = "markup"
)

// FXSource is one entry in the ordered FX acquisition chain.
type FXSource struct {
	URL   string `yaml:"url"`
	Kind  string `yaml:"kind"`
	Label string `yaml:"label,omitempty"`
}

// WalletProvider is one savings-wallet provider queried independently.
type WalletProvider struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// TableSource describes a single-source rate table with a minimum match
// threshold. Below the threshold the scan is assumed to have hit unrelated
// noise and the label-anchored strategy is tried instead.
type TableSource struct {
	URL        string `yaml:"url"`
	MinMatches int    `yaml:"min_matches"`
	Label      string `yaml:"label"`
}

// Sources is the parsed YAML structure describing every indicator's
// acquisition chain.
type Sources struct {
	RateFX struct {
		Sources []FXSource `yaml:"sources"`
	} `yaml:"rate_fx"`
	WalletYields struct {
		Label     string           `yaml:"label"`
		Window    int              `yaml:"window"`
		Providers []WalletProvider `yaml:"providers"`
	} `yaml:"wallet_yields"`
	RepoRates    TableSource `yaml:"repo_rates"`
	TermDeposits TableSource `yaml:"term_deposit_rates"`
}

// DefaultSources returns the built-in acquisition chains, used when no
// sources file is configured.
func DefaultSources() Sources {
	var s Sources
	s.RateFX.Sources = []FXSource{
		{URL: "https://dolarapi.com/v1/dolares/oficial", Kind: SourceKindJSON},
		{URL: "https://www.cronista.com/MercadosOnline/moneda.html?id=ARSB", Kind: SourceKindMarkup, Label: "Dólar oficial"},
	}
	s.WalletYields.Label = "TNA"
	s.WalletYields.Window = 400
	s.WalletYields.Providers = []WalletProvider{
		{Name: "Mercado Pago", URL: "https://www.mercadopago.com.ar/cuenta/rendimientos"},
		{Name: "Ualá", URL: "https://www.uala.com.ar/cuenta-remunerada"},
		{Name: "Personal Pay", URL: "https://www.personalpay.com.ar/rendimientos"},
		{Name: "Naranja X", URL: "https://www.naranjax.com/cuenta-remunerada"},
	}
	s.RepoRates = TableSource{
		URL:        "https://www.invertironline.com/mercado/cotizaciones/argentina/cauciones",
		MinMatches: 3,
		Label:      "Caución",
	}
	s.TermDeposits = TableSource{
		URL:        "https://www.bcra.gob.ar/BCRAyVos/Plazos_fijos_online.asp",
		MinMatches: 4,
		Label:      "Banco",
	}
	return s
}

// LoadSourcesFile parses a YAML sources file from the given path. An empty
// path yields the built-in defaults.
func LoadSourcesFile(path string) (Sources, error) {
	if path == "" {
		return DefaultSources(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Sources{}, fmt.Errorf("read sources file: %w", err)
	}

	var s Sources
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sources{}, fmt.Errorf("parse sources file: %w", err)
	}

	if s.WalletYields.Window == 0 {
		s.WalletYields.Window = DefaultSources().WalletYields.Window
	}

	if err := validateSources(s); err != nil {
		return Sources{}, err
	}

	return s, nil
}

func validateSources(s Sources) error {
	if len(s.RateFX.Sources) == 0 {
		return fmt.Errorf("rate_fx: at least one source is required")
	}
	for i, src := range s.RateFX.Sources {
		if src.URL == "" {
			return fmt.Errorf("rate_fx source %d: url is required", i)
		}
		if err := validateURL(src.URL, "rate_fx url"); err != nil {
			return err
		}
		switch src.Kind {
		case SourceKindJSON:
		case SourceKindMarkup:
			if src.Label == "" {
				return fmt.Errorf("rate_fx source %d: markup sources require a label", i)
			}
		default:
			return fmt.Errorf("rate_fx source %d: unknown kind %q", i, src.Kind)
		}
	}

	if len(s.WalletYields.Providers) == 0 {
		return fmt.Errorf("wallet_yields: at least one provider is required")
	}
	if s.WalletYields.Label == "" {
		return fmt.Errorf("wallet_yields: label is required")
	}
	if s.WalletYields.Window <= 0 {
		return fmt.Errorf("wallet_yields: window must be greater than zero")
	}
	seen := make(map[string]bool)
	for i, p := range s.WalletYields.Providers {
		if p.Name == "" {
			return fmt.Errorf("wallet_yields provider %d: name is required", i)
		}
		if p.URL == "" {
			return fmt.Errorf("wallet_yields provider %q: url is required", p.Name)
		}
		if err := validateURL(p.URL, "wallet_yields url"); err != nil {
			return fmt.Errorf("wallet_yields provider %q: %w", p.Name, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("wallet_yields provider %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
	}

	if err := validateTableSource(s.RepoRates, "repo_rates"); err != nil {
		return err
	}
	return validateTableSource(s.TermDeposits, "term_deposit_rates")
}

func validateTableSource(t TableSource, name string) error {
	if t.URL == "" {
		return fmt.Errorf("%s: url is required", name)
	}
	if err := validateURL(t.URL, name+" url"); err != nil {
		return err
	}
	if t.MinMatches <= 0 {
		return fmt.Errorf("%s: min_matches must be greater than zero", name)
	}
	if t.Label == "" {
		return fmt.Errorf("%s: label is required", name)
	}
	return nil
}
