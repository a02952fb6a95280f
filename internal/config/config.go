// Package config loads the engine's YAML configuration and applies safe
// defaults for anything omitted.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/horizon/internal/alloc"
	"github.com/sawpanic/horizon/internal/domain"
)

type Config struct {
	Universe   UniverseConfig   `yaml:"universe"`
	Capital    CapitalConfig    `yaml:"capital"`
	Allocation AllocationConfig `yaml:"allocation"`
	Risk       RiskConfig       `yaml:"risk"`
	Data       DataConfig       `yaml:"data"`
	Broker     BrokerConfig     `yaml:"broker"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
}

type UniverseConfig struct {
	Symbols     []string `yaml:"symbols"`
	IndexSymbol string   `yaml:"index_symbol"`
}

type CapitalConfig struct {
	Total             float64 `yaml:"total"`
	MinTradeCapital   float64 `yaml:"min_trade_capital"`
	DailyRiskFraction float64 `yaml:"daily_risk_fraction"`
}

// AllocationConfig is the capital allocation policy: the base split across
// books, the rebalance bounds and cadence, and the drawdown thresholds.
type AllocationConfig struct {
	BasePercents      map[string]float64 `yaml:"base_percents"`
	MinPercent        float64            `yaml:"min_percent"`
	MaxPercent        float64            `yaml:"max_percent"`
	MaxMonthlyAdjust  float64            `yaml:"max_monthly_adjust"`
	DrawdownWarning   float64            `yaml:"drawdown_warning"`
	DrawdownCritical  float64            `yaml:"drawdown_critical"`
	RebalanceInterval Duration           `yaml:"rebalance_interval"`
}

type RiskConfig struct {
	MinRiskReward float64            `yaml:"min_risk_reward"`
	RiskFractions map[string]float64 `yaml:"risk_fractions"`
	MaxOpen       map[string]int     `yaml:"max_open_positions"`
}

type DataConfig struct {
	RPS          float64  `yaml:"rps"`
	Burst        int      `yaml:"burst"`
	CallTimeout  Duration `yaml:"call_timeout"`
	ScanInterval Duration `yaml:"scan_interval"`
	ExitInterval Duration `yaml:"exit_interval"`
	FetchWorkers int      `yaml:"fetch_workers"`
}

// Duration accepts YAML strings like "90s" or "10m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d Duration) Std() time.Duration { return time.Duration(d) }

type BrokerConfig struct {
	CommissionBps float64 `yaml:"commission_bps"`
	SlippageBps   float64 `yaml:"slippage_bps"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// Default returns the configuration used when no file is supplied: a
// paper book of one million over the NIFTY 50 benchmark.
func Default() Config {
	return Config{
		Universe: UniverseConfig{IndexSymbol: "NIFTY50"},
		Capital: CapitalConfig{
			Total:             1_000_000,
			MinTradeCapital:   1_000,
			DailyRiskFraction: 0.02,
		},
		Allocation: AllocationConfig{
			BasePercents: map[string]float64{
				"intraday": 15,
				"swing":    35,
				"midterm":  35,
				"longterm": 15,
			},
			MinPercent:        10,
			MaxPercent:        50,
			MaxMonthlyAdjust:  10,
			DrawdownWarning:   0.10,
			DrawdownCritical:  0.15,
			RebalanceInterval: Duration(30 * 24 * time.Hour),
		},
		Risk: RiskConfig{
			MinRiskReward: 1.5,
			RiskFractions: map[string]float64{
				"intraday": 0.007,
				"swing":    0.015,
				"midterm":  0.020,
				"longterm": 0.030,
			},
			MaxOpen: map[string]int{
				"intraday": 1,
				"swing":    3,
				"midterm":  3,
				"longterm": 3,
			},
		},
		Data: DataConfig{
			RPS:          5,
			Burst:        10,
			CallTimeout:  Duration(10 * time.Second),
			ScanInterval: Duration(5 * time.Minute),
			ExitInterval: Duration(time.Minute),
			FetchWorkers: 4,
		},
		Broker: BrokerConfig{CommissionBps: 3, SlippageBps: 2},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads the file over the defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Universe.Symbols) == 0 {
		return fmt.Errorf("config: universe.symbols is empty")
	}
	if c.Universe.IndexSymbol == "" {
		return fmt.Errorf("config: universe.index_symbol is required")
	}
	if c.Capital.Total <= 0 {
		return fmt.Errorf("config: capital.total must be positive, got %.2f", c.Capital.Total)
	}
	if c.Risk.MinRiskReward < 1 {
		return fmt.Errorf("config: risk.min_risk_reward %.2f must be at least 1", c.Risk.MinRiskReward)
	}
	for _, h := range domain.Horizons {
		f, ok := c.Risk.RiskFractions[string(h)]
		if !ok || f <= 0 || f > 0.1 {
			return fmt.Errorf("config: risk.risk_fractions.%s must be in (0, 0.1]", h)
		}
	}
	sum := 0.0
	for _, h := range domain.Horizons {
		p, ok := c.Allocation.BasePercents[string(h)]
		if !ok || p <= 0 {
			return fmt.Errorf("config: allocation.base_percents.%s must be positive", h)
		}
		sum += p
	}
	if math.Abs(sum-100) > 1e-6 {
		return fmt.Errorf("config: allocation.base_percents must sum to 100, got %.2f", sum)
	}
	if c.Allocation.MinPercent <= 0 || c.Allocation.MinPercent >= c.Allocation.MaxPercent {
		return fmt.Errorf("config: allocation.min_percent %.1f must be positive and below max_percent %.1f",
			c.Allocation.MinPercent, c.Allocation.MaxPercent)
	}
	if c.Allocation.DrawdownWarning <= 0 || c.Allocation.DrawdownWarning >= c.Allocation.DrawdownCritical {
		return fmt.Errorf("config: allocation.drawdown_warning %.2f must be positive and below drawdown_critical %.2f",
			c.Allocation.DrawdownWarning, c.Allocation.DrawdownCritical)
	}
	return nil
}

// AllocatorConfig projects the YAML policy onto the allocator's typed
// config, folding in the capital section's trade floor and risk budget.
func (c Config) AllocatorConfig() alloc.Config {
	out := alloc.DefaultConfig()
	base := make(map[domain.Horizon]float64, len(c.Allocation.BasePercents))
	for k, v := range c.Allocation.BasePercents {
		base[domain.Horizon(k)] = v
	}
	out.BasePercents = base
	out.MinPercent = c.Allocation.MinPercent
	out.MaxPercent = c.Allocation.MaxPercent
	out.MaxMonthlyAdjust = c.Allocation.MaxMonthlyAdjust
	out.DrawdownWarning = c.Allocation.DrawdownWarning
	out.DrawdownCritical = c.Allocation.DrawdownCritical
	out.RebalanceInterval = c.Allocation.RebalanceInterval.Std()
	out.DailyRiskFraction = c.Capital.DailyRiskFraction
	out.MinTradeCapital = c.Capital.MinTradeCapital
	return out
}

// RiskFractionByHorizon converts the YAML keys to typed horizons.
func (c Config) RiskFractionByHorizon() map[domain.Horizon]float64 {
	out := make(map[domain.Horizon]float64, len(c.Risk.RiskFractions))
	for k, v := range c.Risk.RiskFractions {
		out[domain.Horizon(k)] = v
	}
	return out
}

func (c Config) MaxOpenByHorizon() map[domain.Horizon]int {
	out := make(map[domain.Horizon]int, len(c.Risk.MaxOpen))
	for k, v := range c.Risk.MaxOpen {
		out[domain.Horizon(k)] = v
	}
	return out
}
