package action

import (
	"errors"
	"fmt"
	"maps"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/audit"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/validation"
)

// writeback applies the operations of one invocation inside a transaction.
// Instances it creates are bound into env so later operations can use them.
type writeback struct {
	reg    *registry.Registry
	tx     *storage.Tx
	env    *validation.Env
	events []audit.Event
}

func (w *writeback) run() error {
	def := w.env.Action
	for i, op := range def.WriteBackOperations {
		holds, err := w.env.Holds(op.When)
		if err == nil && holds {
			err = w.apply(op)
		}
		if err != nil {
			return &apperr.ExecutionError{
				Action:    def.Name,
				Operation: fmt.Sprintf("#%d %s", i+1, op.Op),
				Err:       err,
			}
		}
	}
	return nil
}

func (w *writeback) apply(op dsl.Operation) error {
	switch op.Op {
	case dsl.OpSetField:
		return w.setField(op)
	case dsl.OpAdjustField:
		return w.adjustField(op)
	case dsl.OpCreateInstance, dsl.OpEnsureInstance:
		return w.create(op)
	case dsl.OpLink:
		from, to, err := w.endpoints(op)
		if err != nil {
			return err
		}
		return w.tx.Link(op.Link, from, to)
	case dsl.OpUnlink:
		if op.To == nil {
			from, err := w.env.ResolveString(op.From)
			if err != nil {
				return err
			}
			return w.tx.UnlinkAll(op.Link, from)
		}
		from, to, err := w.endpoints(op)
		if err != nil {
			return err
		}
		return w.tx.Unlink(op.Link, from, to)
	case dsl.OpEmitEvent:
		payload, err := w.env.ResolveMap(op.Payload)
		if err != nil {
			return err
		}
		w.events = append(w.events, audit.Event{Topic: op.Topic, Payload: payload})
		return nil
	}
	return fmt.Errorf("unknown operation '%s'", op.Op)
}

func (w *writeback) bound(alias string) (*storage.Instance, error) {
	inst := w.env.Ref(alias)
	if inst == nil {
		return nil, fmt.Errorf("ref '%s' is absent", alias)
	}
	return inst, nil
}

func (w *writeback) setField(op dsl.Operation) error {
	inst, err := w.bound(op.Ref)
	if err != nil {
		return err
	}
	val, err := w.env.Resolve(op.Value)
	if err != nil {
		return err
	}
	if val == nil && op.SkipNull {
		return nil
	}
	return w.update(op.Ref, inst, map[string]any{op.Field: val})
}

func (w *writeback) adjustField(op dsl.Operation) error {
	inst, err := w.bound(op.Ref)
	if err != nil {
		return err
	}
	raw, err := w.env.Resolve(op.Delta)
	if err != nil {
		return err
	}
	delta, ok := dsl.ToFloat(raw)
	if !ok {
		return fmt.Errorf("delta %v is not a number", op.Delta)
	}
	if op.Negate {
		delta = -delta
	}
	return w.update(op.Ref, inst, map[string]any{op.Field: inst.Number(op.Field) + delta})
}

func (w *writeback) update(alias string, inst *storage.Instance, partial map[string]any) error {
	next, err := w.tx.Update(inst.Type, inst.ID, partial)
	if err != nil {
		return err
	}
	w.env.Bind(alias, &next)
	return nil
}

// create handles create_instance and ensure_instance. ensure_instance keeps
// an instance already bound to the alias or stored under the id.
func (w *writeback) create(op dsl.Operation) error {
	ensure := op.Op == dsl.OpEnsureInstance
	if ensure && w.env.Ref(op.Bind) != nil {
		return nil
	}

	id, err := w.env.ResolveString(op.ID)
	if err != nil {
		return err
	}
	if id == "" {
		return errors.New("id resolved to an empty string")
	}
	if ensure {
		existing, err := w.tx.Get(op.Type, id)
		if err == nil {
			w.env.Bind(op.Bind, &existing)
			return nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
	}

	ot, err := w.reg.GetObjectType(op.Type)
	if err != nil {
		return err
	}
	fields := make(map[string]any, len(ot.Properties))
	if op.CloneFrom != "" {
		src, err := w.bound(op.CloneFrom)
		if err != nil {
			return err
		}
		maps.Copy(fields, src.Clone().Fields)
	}
	resolved, err := w.env.ResolveMap(op.Fields)
	if err != nil {
		return err
	}
	maps.Copy(fields, resolved)
	fields[ot.PrimaryKey] = id

	inst, err := w.tx.Create(op.Type, fields)
	if err != nil {
		return err
	}
	w.env.Bind(op.Bind, &inst)
	return nil
}

func (w *writeback) endpoints(op dsl.Operation) (string, string, error) {
	from, err := w.env.ResolveString(op.From)
	if err != nil {
		return "", "", err
	}
	to, err := w.env.ResolveString(op.To)
	if err != nil {
		return "", "", err
	}
	if from == "" || to == "" {
		return "", "", fmt.Errorf("link %s: endpoint resolved to an empty id", op.Link)
	}
	return from, to, nil
}
