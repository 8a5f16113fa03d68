package ui

import (
	"context"
	"errors"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// ErrDialogClosed is returned when a dialog is dismissed by shutdown or
// context cancellation instead of a user choice.
var ErrDialogClosed = errors.New("ui: dialog closed")

const (
	dialogPage  = "dialog"
	loadingPage = "loading"
)

// Dialogs is the blocking modal subsystem. Calls block the caller until the
// user answers, so they must never run on the UI goroutine.
type Dialogs interface {
	Confirm(ctx context.Context, title, message string) (bool, error)
	Alert(ctx context.Context, title, message string) error
	Prompt(ctx context.Context, title, label, initial string) (string, error)
	ShowLoading(message string)
	HideLoading()
}

type dialogResult struct {
	ok    bool
	value string
}

// Confirm shows an OK/Cancel modal. Escape counts as Cancel.
func (d *Dashboard) Confirm(ctx context.Context, title, message string) (bool, error) {
	res, err := d.runDialog(ctx, func(answer func(dialogResult)) tview.Primitive {
		m := tview.NewModal().
			SetText(title + "\n\n" + message).
			AddButtons([]string{"OK", "Cancel"}).
			SetDoneFunc(func(index int, label string) {
				answer(dialogResult{ok: label == "OK"})
			})
		m.SetBorderColor(uiFocusedColor)
		return m
	})
	return res.ok, err
}

// Alert shows a single-button modal and waits for acknowledgement.
func (d *Dashboard) Alert(ctx context.Context, title, message string) error {
	_, err := d.runDialog(ctx, func(answer func(dialogResult)) tview.Primitive {
		m := tview.NewModal().
			SetText(title + "\n\n" + message).
			AddButtons([]string{"OK"}).
			SetDoneFunc(func(int, string) { answer(dialogResult{ok: true}) })
		m.SetBorderColor(uiFocusedColor)
		return m
	})
	return err
}

// Prompt asks for one line of text. Cancel or Escape returns ok=false with
// an empty value and no error.
func (d *Dashboard) Prompt(ctx context.Context, title, label, initial string) (string, error) {
	res, err := d.runDialog(ctx, func(answer func(dialogResult)) tview.Primitive {
		form := tview.NewForm()
		form.AddInputField(label, initial, 40, nil, nil)
		form.AddButton("OK", func() {
			field, _ := form.GetFormItemByLabel(label).(*tview.InputField)
			value := ""
			if field != nil {
				value = field.GetText()
			}
			answer(dialogResult{ok: true, value: value})
		})
		form.AddButton("Cancel", func() { answer(dialogResult{}) })
		form.SetCancelFunc(func() { answer(dialogResult{}) })
		form.SetBorder(true).SetTitle(accentText(title)).SetTitleAlign(tview.AlignLeft)
		form.SetBorderColor(uiFocusedColor)
		return centered(form, 60, 7)
	})
	if err != nil || !res.ok {
		return "", err
	}
	return res.value, nil
}

// runDialog mounts the primitive built by build and blocks until it answers.
// Dialogs are serialized.
func (d *Dashboard) runDialog(ctx context.Context, build func(answer func(dialogResult)) tview.Primitive) (dialogResult, error) {
	if d.app == nil {
		return dialogResult{}, ErrDialogClosed
	}
	d.dialogMu.Lock()
	defer d.dialogMu.Unlock()

	answers := make(chan dialogResult, 1)
	answer := func(r dialogResult) {
		select {
		case answers <- r:
		default:
		}
	}
	var previous tview.Primitive
	d.app.QueueUpdateDraw(func() {
		previous = d.app.GetFocus()
		p := build(answer)
		d.pages.AddPage(dialogPage, p, true, true)
		d.pages.SendToFront(dialogPage)
		d.dialogActive.Store(true)
		d.app.SetFocus(p)
		d.metrics.DialogShown()
	})
	defer d.app.QueueUpdateDraw(func() {
		d.pages.RemovePage(dialogPage)
		d.dialogActive.Store(false)
		if previous != nil {
			d.app.SetFocus(previous)
		}
	})

	select {
	case r := <-answers:
		return r, nil
	case <-ctx.Done():
		return dialogResult{}, ErrDialogClosed
	case <-d.ctx.Done():
		return dialogResult{}, ErrDialogClosed
	}
}

// ShowLoading covers the pages with a message until HideLoading.
func (d *Dashboard) ShowLoading(message string) {
	d.loadingShown.Store(true)
	d.scheduler.Schedule(loadingPage, func() {
		tv := tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)
		tv.SetText("\n" + tview.Escape(message) + "\n[gray]please wait[-]")
		tv.SetBorder(true).SetBorderColor(uiFocusedColor)
		tv.SetInputCapture(func(*tcell.EventKey) *tcell.EventKey { return nil })
		d.pages.AddPage(loadingPage, centered(tv, 48, 5), true, true)
		d.pages.SendToFront(loadingPage)
	})
}

func (d *Dashboard) HideLoading() {
	d.loadingShown.Store(false)
	d.scheduler.Schedule(loadingPage, func() {
		d.pages.RemovePage(loadingPage)
	})
}

// LoadingShown reports whether the loading overlay is up.
func (d *Dashboard) LoadingShown() bool { return d.loadingShown.Load() }

func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false),
			width, 1, true).
		AddItem(nil, 0, 1, false)
}
