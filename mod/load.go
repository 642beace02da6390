package mod

import (
	"time"

	"github.com/Redstone-OS/forge/cap"
	"github.com/Redstone-OS/forge/config"
	"github.com/Redstone-OS/forge/defs"
	"github.com/Redstone-OS/forge/mem"
	"github.com/Redstone-OS/forge/vm"
)

// Manifest_t describes a module object before it is loaded: its raw image,
// detached signature, declared rights, and the code-page budget the
// supervisor will enforce.
type Manifest_t struct {
	Name string
	Code []byte
	Data []byte
	Signature []byte
	WantRights defs.Rights_t
	MaxCodePages int
	TrampolineLo int
	TrampolineHi int
	HealthInterval time.Duration
	Critical bool
}

// Supervisor_t owns module loading and the global trust root.
type Supervisor_t struct {
	Trust TrustRoot_t
	nextID uint64
	Grant *cap.CSpace_t // root CSpace given to NewSupervisor; Load does not derive from it
	Registry Registry_t // name-keyed lookup of every running module
}

// NewSupervisor creates a supervisor holding trust and root. Module
// capability bundles are not derived from root: Load gives every module a
// fresh, empty CSpace.
func NewSupervisor(trust TrustRoot_t, root *cap.CSpace_t) *Supervisor_t {
	return &Supervisor_t{Trust: trust, Grant: root}
}

// Load checks the code-page budget, verifies the signature and the code,
// inserts code and data VMAs into as, and runs cb.Init with the module's
// capability bundle. It applies no relocations, the bundle is an empty
// CSpace (m.WantRights is not consulted), and Init is called directly with
// no timeout.
func (s *Supervisor_t) Load(as *vm.AddressSpace_t, codeBase, dataBase mem.Va_t, m *Manifest_t, cb Callbacks_t) (*Module_t, defs.Err_t) {
	if len(m.Code) == 0 {
		return nil, defs.EINVAL
	}
	codePages := (len(m.Code) + int(mem.PGSIZE) - 1) / int(mem.PGSIZE)
	if m.MaxCodePages > 0 && codePages > m.MaxCodePages {
		return nil, defs.ELIMIT
	}

	if err := s.Trust.VerifySignature(m.Code, m.Signature); err != 0 {
		return nil, err
	}
	if err := VerifyCode(m.Code, m.TrampolineLo, m.TrampolineHi); err != 0 {
		return nil, err
	}

	// The code VMA is inserted read+exec from the start (W^X); it is never
	// writable, since no relocation pass runs here.
	codeVma := &vm.Vma_t{
		Start: codeBase,
		End: codeBase + mem.Va_t(codePages)*mem.Va_t(mem.PGSIZE),
		Prot: vm.PROT_READ | vm.PROT_EXEC,
		Intent: vm.INTENT_CODE,
	}
	if err := as.InsertVma(codeVma); err != 0 {
		return nil, err
	}

	dataPages := (len(m.Data) + int(mem.PGSIZE) - 1) / int(mem.PGSIZE)
	if dataPages > 0 {
		dataVma := &vm.Vma_t{
			Start: dataBase,
			End: dataBase + mem.Va_t(dataPages)*mem.Va_t(mem.PGSIZE),
			Prot: vm.PROT_READ | vm.PROT_WRITE,
			Intent: vm.INTENT_DATA,
		}
		if err := as.InsertVma(dataVma); err != 0 {
			as.RemoveVma(codeBase)
			return nil, err
		}
	}

	grants := cap.NewCSpace(config.Current.DefaultCSpaceSlots)
	s.nextID++
	mod := &Module_t{
		ID: s.nextID,
		Name: m.Name,
		State: MOD_LOADING,
		Grants: grants,
		CodeBase: codeBase,
		CodePages: codePages,
		DataBase: dataBase,
		DataPages: dataPages,
		Cb: cb,
		WD: Watchdog_t{
			Timeout: m.HealthInterval,
			Critical: m.Critical,
		},
	}

	if cb.Init != nil {
		if err := cb.Init(grants); err != 0 {
			mod.State = MOD_FAILED
			return mod, err
		}
	}
	mod.State = MOD_RUNNING
	s.Registry.Put(mod.Name, mod)
	return mod, 0
}

// Unload transitions a running module to Stopped, invoking its cleanup
// callback and releasing its code/data VMAs.
func (s *Supervisor_t) Unload(as *vm.AddressSpace_t, mod *Module_t) {
	if mod.Cb.Cleanup != nil {
		mod.Cb.Cleanup()
	}
	as.RemoveVma(mod.CodeBase)
	if mod.DataPages > 0 {
		as.RemoveVma(mod.DataBase)
	}
	mod.State = MOD_STOPPED
	s.Registry.Del(mod.Name)
}
