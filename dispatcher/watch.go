package dispatcher

import (
	"redapid/object"
	"redapid/program"
)

// StartConfigWatcher starts the on-disk program.conf watcher and keeps a
// reference so handleProgramDefine can add newly created program
// directories to it. Called once by the composition root after
// AttachReactor, so reloads can be posted onto the main loop; without a
// reactor attached, a reload runs inline on the watcher's own goroutine
// (acceptable only because nothing else is touching the inventory
// concurrently in that configuration, i.e. tests).
func (d *Dispatcher) StartConfigWatcher() error {
	w, err := program.NewWatcher(d.home, d.onConfigFileChanged)
	if err != nil {
		return err
	}
	d.watcher = w
	return nil
}

func (d *Dispatcher) onConfigFileChanged(identifier string, cfg *program.Config) {
	reload := func() {
		p := d.findProgramByIdentifier(identifier)
		if p == nil {
			return
		}
		if err := p.SetConfig(cfg); err != nil {
			return
		}
		p.Update(true, d.srv != nil && d.srv.Connected(), false)
	}
	if d.react != nil {
		d.react.Post(reload)
		return
	}
	reload()
}

func (d *Dispatcher) findProgramByIdentifier(identifier string) *program.Program {
	for _, id := range d.inv.LiveIDs(object.KindProgram) {
		o, code := d.inv.Get(object.KindProgram, id)
		if code != nil {
			continue
		}
		p, ok := o.(*program.Program)
		if !ok {
			continue
		}
		if p.Identifier() == identifier {
			return p
		}
	}
	return nil
}

// watchNewProgramDir registers a just-created program directory with the
// config watcher, if one is running.
func (d *Dispatcher) watchNewProgramDir(dir string) {
	if d.watcher != nil {
		d.watcher.WatchProgram(dir)
	}
}
