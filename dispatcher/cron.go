package dispatcher

import (
	"redapid/cron"
	apierrors "redapid/errors"
	"redapid/object"
	"redapid/program"
)

// HandleCronWake implements reactor.CronHandler: it runs on the main
// loop (the cron listener's accept/read callbacks fire there directly,
// no extra goroutine involved), so it may touch the Program object
// without posting through the reactor. An unknown program id is ignored
// without logging, the same as a crontab line surviving past its
// program's undefine().
func (d *Dispatcher) HandleCronWake(n cron.Notification) {
	o, code := d.lookup(object.KindProgram, n.ProgramID)
	if code != apierrors.Success {
		return
	}
	p, ok := o.(*program.Program)
	if !ok {
		return
	}
	p.CronWake()
}
