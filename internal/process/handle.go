package process

import "ecosystem.dev/internal/model"

type RHandle struct {
	m  *ProcessManager
	db model.RHandle[Process]
}

type WHandle struct {
	m  *ProcessManager
	db model.WHandle[Process]
}

func (manager *ProcessManager) ReadHandle() RHandle {
	return RHandle{m: manager, db: manager.db.ReadHandle()}
}

func (manager *ProcessManager) WriteHandle() WHandle {
	return WHandle{m: manager, db: manager.db.WriteHandle()}
}

func (r *RHandle) Close() {
	r.db.Close()
}

func (w *WHandle) Close() {
	w.db.Close()
}

func (manager *ProcessManager) FindById(id ProcessId) (*Process, error) {
	r := manager.ReadHandle()
	defer r.Close()

	return r.FindById(id)
}

func (manager *ProcessManager) IsAlive(id ProcessId) bool {
	r := manager.ReadHandle()
	defer r.Close()

	return r.IsAlive(id)
}

func (manager *ProcessManager) List(category string) []Process {
	r := manager.ReadHandle()
	defer r.Close()

	return r.List(category)
}

func (manager *ProcessManager) GetLogFile(id ProcessId) (LogFileResult, error) {
	r := manager.ReadHandle()
	defer r.Close()

	return r.GetLogFile(id)
}

func (manager *ProcessManager) Spawn(config ProcessConfig) (*Process, error) {
	w := manager.WriteHandle()
	defer w.Close()

	return w.Spawn(config)
}

func (manager *ProcessManager) SpawnFromPathVar(config ProcessConfig) (*Process, error) {
	w := manager.WriteHandle()
	defer w.Close()

	return w.SpawnFromPathVar(config)
}

func (manager *ProcessManager) Kill(id ProcessId) error {
	w := manager.WriteHandle()
	defer w.Close()

	return w.Kill(id)
}

func (manager *ProcessManager) Remove(id ProcessId) error {
	w := manager.WriteHandle()
	defer w.Close()

	return w.Remove(id)
}
