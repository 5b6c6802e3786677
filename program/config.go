// Package program implements the Program object type: identifier
// validation, on-disk ProgramConfig load/save (spec §4.8), and the
// scheduler state machine (§4.7).
package program

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	apierrors "redapid/errors"
)

// ConfigVersion is the only version this daemon currently writes/accepts.
const ConfigVersion = 1

// identifierPattern implements §4.8's alphabet: [A-Za-z0-9._-], first
// character not '-', identifier not equal to "." or "..".
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._][A-Za-z0-9._-]*$`)

// ValidateIdentifier checks the program identifier alphabet and the "."/
// ".." exclusions from §4.8.
func ValidateIdentifier(id string) error {
	if id == "." || id == ".." {
		return apierrors.ErrInvalidProgramID
	}
	if !identifierPattern.MatchString(id) {
		return apierrors.ErrInvalidProgramID
	}
	return nil
}

// StdioMode is the closed set of stdio redirection modes (§4.7's matrix).
type StdioMode uint8

const (
	StdioDevNull StdioMode = iota
	StdioPipe
	StdioFile
	StdioIndividualLog
	StdioContinuousLog
	StdioStdout // stderr only: duplicate stdout's File
)

func parseStdioMode(s string) StdioMode {
	switch s {
	case "pipe":
		return StdioPipe
	case "file":
		return StdioFile
	case "individual_log":
		return StdioIndividualLog
	case "continuous_log":
		return StdioContinuousLog
	case "stdout":
		return StdioStdout
	default:
		return StdioDevNull
	}
}

func (m StdioMode) String() string {
	switch m {
	case StdioPipe:
		return "pipe"
	case StdioFile:
		return "file"
	case StdioIndividualLog:
		return "individual_log"
	case StdioContinuousLog:
		return "continuous_log"
	case StdioStdout:
		return "stdout"
	default:
		return "/dev/null"
	}
}

// StdioRedirection is one of the three (stdin/stdout/stderr) redirection
// slots; FileName is present iff Mode == StdioFile.
type StdioRedirection struct {
	Mode     StdioMode
	FileName string
}

// StartCondition is the legacy scheduling vocabulary, kept as read-through
// config only (see DESIGN.md's Open Question resolution); StartMode below
// is what actually drives the scheduler.
type StartCondition uint8

const (
	StartConditionNever StartCondition = iota
	StartConditionNow
	StartConditionReboot
	StartConditionTimestamp
)

func parseStartCondition(s string) StartCondition {
	switch s {
	case "now":
		return StartConditionNow
	case "reboot":
		return StartConditionReboot
	case "timestamp":
		return StartConditionTimestamp
	default:
		return StartConditionNever
	}
}

func (c StartCondition) String() string {
	switch c {
	case StartConditionNow:
		return "now"
	case StartConditionReboot:
		return "reboot"
	case StartConditionTimestamp:
		return "timestamp"
	default:
		return "never"
	}
}

// StartMode is the current scheduling vocabulary that actually drives the
// scheduler (§4.7's table): Never/Always/Interval/Cron. It is read from
// and written to the same program.conf key the daemon has always used
// ("repeat_mode"), StartCondition/StartTimestamp/StartDelay are carried
// for round-tripping only — see DESIGN.md's Open Question resolution.
type StartMode uint8

const (
	StartModeNever StartMode = iota
	StartModeAlways
	StartModeInterval
	StartModeCron
)

func parseStartMode(s string) StartMode {
	switch s {
	case "always":
		return StartModeAlways
	case "interval":
		return StartModeInterval
	case "cron":
		return StartModeCron
	default:
		return StartModeNever
	}
}

func (m StartMode) String() string {
	switch m {
	case StartModeAlways:
		return "always"
	case StartModeInterval:
		return "interval"
	case StartModeCron:
		return "cron"
	default:
		return "never"
	}
}

// CronMasks are the six cron-style bitmasks, bounded to 60/60/24/31/12/7
// bits respectively and clamped by AND with (1<<width)-1 on save (§4.8).
type CronMasks struct {
	Second  uint64
	Minute  uint64
	Hour    uint32
	Day     uint32
	Month   uint16
	Weekday uint8
}

func (m *CronMasks) clamp() {
	m.Second &= 1<<60 - 1
	m.Minute &= 1<<60 - 1
	m.Hour &= 1<<24 - 1
	m.Day &= 1<<31 - 1
	m.Month &= 1<<12 - 1
	m.Weekday &= 1<<7 - 1
}

// Config is ProgramConfig: everything persisted to program.conf.
type Config struct {
	Version int

	Executable      string
	Arguments       []string
	Environment     []string
	WorkingDirectory string

	Stdin  StdioRedirection
	Stdout StdioRedirection
	Stderr StdioRedirection

	StartCondition StartCondition
	StartTimestamp int64
	StartDelay     int64
	StartMode      StartMode
	RepeatInterval int64
	Cron           CronMasks

	CustomOptions map[string]string
}

// parseIntLiteral accepts decimal, 0x-hex, and 0b-binary integer
// literals, since ini.v1 doesn't itself understand the 0b prefix.
func parseIntLiteral(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B") {
		return strconv.ParseInt(s[2:], 2, 64)
	}
	return strconv.ParseInt(s, 0, 64)
}

// LoadConfig reads program.conf at path using gopkg.in/ini.v1.
func LoadConfig(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, apierrors.Wrap(err, apierrors.MalformedProgramConfig, "program.load_config")
	}
	sec := f.Section("program")

	version, err := sec.Key("version").Int()
	if err != nil {
		return nil, apierrors.WithDetail(apierrors.MalformedProgramConfig, "program.load_config", "missing or invalid version key")
	}

	cfg := &Config{
		Version:          version,
		Executable:       sec.Key("executable").String(),
		Arguments:        sec.Key("arguments").ValueWithShadows(),
		Environment:      sec.Key("environment").ValueWithShadows(),
		WorkingDirectory: sec.Key("working_directory").String(),
		StartCondition:   parseStartCondition(sec.Key("start_condition").String()),
		StartMode:        parseStartMode(sec.Key("repeat_mode").String()),
		CustomOptions:    map[string]string{},
	}

	cfg.StartTimestamp, _ = sec.Key("start_timestamp").Int64()
	cfg.StartDelay, _ = sec.Key("start_delay").Int64()
	cfg.RepeatInterval, _ = sec.Key("repeat_interval").Int64()

	cfg.Stdin = StdioRedirection{Mode: parseStdioMode(sec.Key("stdin_redirection").String()), FileName: sec.Key("stdin_file_name").String()}
	cfg.Stdout = StdioRedirection{Mode: parseStdioMode(sec.Key("stdout_redirection").String()), FileName: sec.Key("stdout_file_name").String()}
	cfg.Stderr = StdioRedirection{Mode: parseStdioMode(sec.Key("stderr_redirection").String()), FileName: sec.Key("stderr_file_name").String()}

	for key, dst := range map[string]*uint64{
		"cron_second": &cfg.Cron.Second,
		"cron_minute": &cfg.Cron.Minute,
	} {
		if sec.HasKey(key) {
			v, err := parseIntLiteral(sec.Key(key).String())
			if err != nil {
				return nil, apierrors.WithDetail(apierrors.MalformedProgramConfig, "program.load_config", "bad integer literal in "+key)
			}
			*dst = uint64(v)
		}
	}
	for key, dst := range map[string]*uint32{
		"cron_hour": &cfg.Cron.Hour,
		"cron_day":  &cfg.Cron.Day,
	} {
		if sec.HasKey(key) {
			v, err := parseIntLiteral(sec.Key(key).String())
			if err != nil {
				return nil, apierrors.WithDetail(apierrors.MalformedProgramConfig, "program.load_config", "bad integer literal in "+key)
			}
			*dst = uint32(v)
		}
	}
	if sec.HasKey("cron_month") {
		v, err := parseIntLiteral(sec.Key("cron_month").String())
		if err != nil {
			return nil, apierrors.WithDetail(apierrors.MalformedProgramConfig, "program.load_config", "bad integer literal in cron_month")
		}
		cfg.Cron.Month = uint16(v)
	}
	if sec.HasKey("cron_weekday") {
		v, err := parseIntLiteral(sec.Key("cron_weekday").String())
		if err != nil {
			return nil, apierrors.WithDetail(apierrors.MalformedProgramConfig, "program.load_config", "bad integer literal in cron_weekday")
		}
		cfg.Cron.Weekday = uint8(v)
	}
	cfg.Cron.clamp()

	if custom, err := f.GetSection("custom_options"); err == nil {
		for _, key := range custom.Keys() {
			cfg.CustomOptions[key.Name()] = key.Value()
		}
	}

	return cfg, nil
}

// SaveConfig writes program.conf, clamping the cron masks per §4.8.
func SaveConfig(path string, cfg *Config) error {
	cfg.Cron.clamp()
	if cfg.Version == 0 {
		cfg.Version = ConfigVersion
	}

	f := ini.Empty()
	sec, err := f.NewSection("program")
	if err != nil {
		return apierrors.Wrap(err, apierrors.InternalError, "program.save_config")
	}

	sec.NewKey("version", strconv.Itoa(cfg.Version))
	sec.NewKey("executable", cfg.Executable)
	for _, a := range cfg.Arguments {
		sec.Key("arguments").AddShadow(a)
	}
	for _, e := range cfg.Environment {
		sec.Key("environment").AddShadow(e)
	}
	sec.NewKey("working_directory", cfg.WorkingDirectory)
	sec.NewKey("start_condition", cfg.StartCondition.String())
	sec.NewKey("start_timestamp", strconv.FormatInt(cfg.StartTimestamp, 10))
	sec.NewKey("start_delay", strconv.FormatInt(cfg.StartDelay, 10))
	sec.NewKey("repeat_mode", cfg.StartMode.String())
	sec.NewKey("repeat_interval", strconv.FormatInt(cfg.RepeatInterval, 10))

	sec.NewKey("stdin_redirection", cfg.Stdin.Mode.String())
	sec.NewKey("stdin_file_name", cfg.Stdin.FileName)
	sec.NewKey("stdout_redirection", cfg.Stdout.Mode.String())
	sec.NewKey("stdout_file_name", cfg.Stdout.FileName)
	sec.NewKey("stderr_redirection", cfg.Stderr.Mode.String())
	sec.NewKey("stderr_file_name", cfg.Stderr.FileName)

	sec.NewKey("cron_second", fmt.Sprintf("0x%x", cfg.Cron.Second))
	sec.NewKey("cron_minute", fmt.Sprintf("0x%x", cfg.Cron.Minute))
	sec.NewKey("cron_hour", fmt.Sprintf("0x%x", cfg.Cron.Hour))
	sec.NewKey("cron_day", fmt.Sprintf("0x%x", cfg.Cron.Day))
	sec.NewKey("cron_month", fmt.Sprintf("0x%x", cfg.Cron.Month))
	sec.NewKey("cron_weekday", fmt.Sprintf("0x%x", cfg.Cron.Weekday))

	if len(cfg.CustomOptions) > 0 {
		custom, err := f.NewSection("custom_options")
		if err != nil {
			return apierrors.Wrap(err, apierrors.InternalError, "program.save_config")
		}
		for k, v := range cfg.CustomOptions {
			custom.NewKey(k, v)
		}
	}

	if err := f.SaveTo(path); err != nil {
		return apierrors.Wrap(err, apierrors.InternalError, "program.save_config")
	}
	return nil
}
