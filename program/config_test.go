package program

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRaw(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0644)
}

func TestValidateIdentifier(t *testing.T) {
	cases := []struct {
		id      string
		wantErr bool
	}{
		{"my-program", false},
		{"My_Program.1", false},
		{".", true},
		{"..", true},
		{"-leading-dash", true},
		{".hidden", false},
		{"has space", true},
		{"", true},
	}
	for _, c := range cases {
		err := ValidateIdentifier(c.id)
		if (err != nil) != c.wantErr {
			t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", c.id, err, c.wantErr)
		}
	}
}

func TestStartModeRoundTrip(t *testing.T) {
	for _, m := range []StartMode{StartModeNever, StartModeAlways, StartModeInterval, StartModeCron} {
		if got := parseStartMode(m.String()); got != m {
			t.Errorf("parseStartMode(%q) = %v, want %v", m.String(), got, m)
		}
	}
}

func TestCronMasksClamp(t *testing.T) {
	m := CronMasks{
		Second:  ^uint64(0),
		Minute:  ^uint64(0),
		Hour:    ^uint32(0),
		Day:     ^uint32(0),
		Month:   ^uint16(0),
		Weekday: ^uint8(0),
	}
	m.clamp()
	if m.Hour != 1<<24-1 {
		t.Errorf("Hour = %x, want %x", m.Hour, uint32(1<<24-1))
	}
	if m.Month != 1<<12-1 {
		t.Errorf("Month = %x, want %x", m.Month, uint16(1<<12-1))
	}
	if m.Weekday != 1<<7-1 {
		t.Errorf("Weekday = %x, want %x", m.Weekday, uint8(1<<7-1))
	}
}

func TestParseIntLiteral(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0x2a", 42, false},
		{"0b101010", 42, false},
		{"not-a-number", 0, true},
	}
	for _, c := range cases {
		got, err := parseIntLiteral(c.in)
		if (err != nil) != c.wantErr {
			t.Errorf("parseIntLiteral(%q) error = %v, wantErr %v", c.in, err, c.wantErr)
			continue
		}
		if err == nil && got != c.want {
			t.Errorf("parseIntLiteral(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestSaveLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.conf")
	cfg := &Config{
		Version:          ConfigVersion,
		Executable:       "/usr/bin/true",
		Arguments:        []string{"-a", "-b"},
		Environment:      []string{"FOO=bar"},
		WorkingDirectory: "/tmp",
		Stdin:            StdioRedirection{Mode: StdioDevNull},
		Stdout:           StdioRedirection{Mode: StdioFile, FileName: "out.log"},
		Stderr:           StdioRedirection{Mode: StdioStdout},
		StartCondition:   StartConditionNow,
		StartMode:        StartModeInterval,
		RepeatInterval:   60,
		Cron: CronMasks{
			Minute: 0x1,
			Hour:   0x2,
		},
		CustomOptions: map[string]string{"bridge_uid": "123"},
	}

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if got.Executable != cfg.Executable {
		t.Errorf("Executable = %q, want %q", got.Executable, cfg.Executable)
	}
	if len(got.Arguments) != 2 || got.Arguments[0] != "-a" || got.Arguments[1] != "-b" {
		t.Errorf("Arguments = %v, want %v", got.Arguments, cfg.Arguments)
	}
	if got.StartMode != StartModeInterval {
		t.Errorf("StartMode = %v, want Interval", got.StartMode)
	}
	if got.Stdout.Mode != StdioFile || got.Stdout.FileName != "out.log" {
		t.Errorf("Stdout = %+v, want File/out.log", got.Stdout)
	}
	if got.Cron.Minute != 0x1 || got.Cron.Hour != 0x2 {
		t.Errorf("Cron = %+v, want Minute=1 Hour=2", got.Cron)
	}
	if got.CustomOptions["bridge_uid"] != "123" {
		t.Errorf("CustomOptions = %v, want bridge_uid=123", got.CustomOptions)
	}
}

func TestLoadConfigMissingVersionFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.conf")
	if err := writeRaw(path, "[program]\nexecutable = /bin/true\n"); err != nil {
		t.Fatalf("writeRaw: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected LoadConfig to fail without a version key")
	}
}
