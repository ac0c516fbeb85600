package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/interop/pkg/domain"
)

func (e *Engine) apply(ctx context.Context, a domain.Action, in *input) error {
	switch a.Type {
	case domain.ActionBind:
		return e.bind(a, in)
	case domain.ActionSet:
		return e.set(ctx, a, in)
	case domain.ActionEmit:
		return e.emit(ctx, a, in)
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

func (e *Engine) bind(a domain.Action, in *input) error {
	var value any
	if a.Header != "" {
		v := in.event.Header(a.Header)
		if v == "" {
			return fmt.Errorf("header %q not present", a.Header)
		}
		value = v
	} else {
		v, err := e.paths.ReadValue(in.body(), a.Path)
		if err != nil {
			return err
		}
		value = v
	}
	e.store(a.Var, value)
	return nil
}

func (e *Engine) set(ctx context.Context, a domain.Action, in *input) error {
	value := a.Value
	if s, ok := value.(string); ok {
		rendered, err := e.interpolator(ctx, s, e.templateData(in))
		if err != nil {
			return err
		}
		value = rendered
	}
	e.store(a.Var, value)
	return nil
}

func (e *Engine) store(name string, value any) {
	e.mu.Lock()
	e.report.Bindings[name] = value
	e.mu.Unlock()
}

func (e *Engine) emit(ctx context.Context, a domain.Action, in *input) error {
	if a.Message == nil {
		return errors.New("emit action has no message")
	}
	msg, err := e.renderMessage(ctx, *a.Message, in)
	if err != nil {
		return err
	}
	if e.emitter == nil {
		e.logger.Debug("Emit skipped, no emitter configured", "interface", msg.InterfaceID, "reply", msg.IsReply())
		return nil
	}
	return e.emitter.Emit(ctx, msg)
}

func (e *Engine) renderMessage(ctx context.Context, tpl domain.MessageTemplate, in *input) (domain.Message, error) {
	data := e.templateData(in)
	render := func(field, text string) (string, error) {
		out, err := e.interpolator(ctx, text, data)
		if err != nil {
			return "", fmt.Errorf("rendering %s: %w", field, err)
		}
		return out, nil
	}

	msg := domain.Message{
		InterfaceID: tpl.Interface,
		Status:      tpl.Status,
	}
	var err error
	if msg.Method, err = render("method", tpl.Method); err != nil {
		return msg, err
	}
	if msg.Path, err = render("path", tpl.Path); err != nil {
		return msg, err
	}
	if msg.Body, err = render("body", tpl.Body); err != nil {
		return msg, err
	}
	if len(tpl.Headers) > 0 {
		msg.Headers = make(map[string]string, len(tpl.Headers))
		for k, v := range tpl.Headers {
			if msg.Headers[k], err = render("header "+k, v); err != nil {
				return msg, err
			}
		}
	}

	if tpl.Reply {
		if in.event.CorrelationID == "" {
			return msg, errors.New("reply requested but the triggering event has no correlation id")
		}
		msg.InReplyTo = in.event.CorrelationID
		if msg.InterfaceID == "" {
			msg.InterfaceID = in.event.InterfaceID
		}
	}
	if msg.InterfaceID == "" {
		return msg, errors.New("emit message has no interface")
	}
	return msg, nil
}

func (e *Engine) templateData(in *input) map[string]any {
	return map[string]any{
		"vars":  map[string]any(e.bindings()),
		"event": in.view(),
	}
}
