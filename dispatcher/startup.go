package dispatcher

import "redapid/program"

// LoadPrograms reconstructs every program directory under d.home (§6's
// "loads persisted program definitions at startup"), wiring each one's
// callbacks and reactor poster exactly as handleProgramDefine does for a
// freshly defined program, then evaluates its scheduler once so a
// program whose start mode is not Never starts running without waiting for
// a peer to ask. A bad program.conf is logged and otherwise skipped; it does not
// stop the rest of the daemon from starting.
func (d *Dispatcher) LoadPrograms() error {
	loaded, err := program.LoadAll(d.inv, d.home, d.spawner)
	for _, p := range loaded {
		d.watchNewProgramDir(p.RootDir())
		d.attachProgramCallbacks(p)
		if d.react != nil {
			p.SetPoster(d.react)
		}
		p.Update(true, d.srv != nil && d.srv.Connected(), false)
	}
	return err
}
