package program

import (
	"os"
	"path/filepath"

	multierror "github.com/hashicorp/go-multierror"

	"redapid/inventory"
)

// LoadAll scans <home>/programs/*/program.conf and reconstructs every
// Program found there, mirroring the original daemon's
// inventory_load_programs() startup step: programs survive a daemon
// restart even though no session is left to reference them, so each
// loaded Program gets an internal reference instead of an external one
// (it lives until undefine() is called over the wire, same as any other
// persistent object this daemon has no graph-persistence story for
// otherwise).
//
// A program directory whose program.conf fails to load is skipped; its
// error is aggregated into the returned multierror alongside any other
// bad entries, so one corrupt program does not stop every other one from
// coming up.
func LoadAll(inv *inventory.Table, home string, spawner Spawner) ([]*Program, error) {
	root := filepath.Join(home, "programs")
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var loaded []*Program
	var errs error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		identifier := e.Name()
		if ValidateIdentifier(identifier) != nil {
			continue
		}
		cfg, err := LoadConfig(filepath.Join(root, identifier, "program.conf"))
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		idString, err := newString(inv, identifier)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		p, err := New(inv, home, idString, cfg, spawner)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		p.AddInternalRef()
		loaded = append(loaded, p)
	}
	return loaded, errs
}
