package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/dustin/go-humanize"

	"pulseboard/config"
	"pulseboard/export"
	"pulseboard/settings"
	"pulseboard/ui"
)

// pollLog is the part of the recorder the settings page needs.
type pollLog interface {
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// settingsActions backs the settings page: it renders the current settings and
// runs the user actions listed under them.
type settingsActions struct {
	dialogs   ui.Dialogs
	settings  *settings.Service
	exporter  *export.Exporter
	polls     pollLog
	clipboard io.Writer
	defFormat string
	// refresh re-renders the settings lines after a change.
	refresh func(lines []string)
}

// Purpose: Build the settings page action list.
// Key aspects: Destructive and remote-writing actions ask for confirmation
// first; a declined or closed dialog is a no-op.
// Upstream: main.
// Downstream: settings.Service, export.Exporter, recorder.
func (a *settingsActions) Actions() []ui.Action {
	actions := []ui.Action{
		{Label: "Toggle public dashboard", Description: "Publish or hide the dashboard", Shortcut: 'p', Run: a.togglePublic},
		{Label: "Export CSV", Description: "Download the report export as CSV", Shortcut: 'c', Run: func(ctx context.Context) { a.download(ctx, export.FormatCSV) }},
		{Label: "Export JSON", Description: "Download the report export as JSON", Shortcut: 'j', Run: func(ctx context.Context) { a.download(ctx, export.FormatJSON) }},
		{Label: "Copy export link", Description: "Copy the export URL to the clipboard", Shortcut: 'l', Run: a.copyLink},
		{Label: "Set export format", Description: "Choose the default export format", Shortcut: 'f', Run: a.setFormat},
		{Label: "Reset local settings", Description: "Forget every locally stored setting", Shortcut: 'r', Run: a.resetSettings},
	}
	if a.polls != nil {
		actions = append(actions, ui.Action{Label: "Clear poll log", Description: "Delete the recorded poll history", Shortcut: 'x', Run: a.clearPolls})
	}
	return actions
}

// Lines renders the settings page body.
func (a *settingsActions) Lines(ctx context.Context) []string {
	store := a.settings.Store()
	public := store.GetDefault(settings.KeyPublicDashboard, "unknown")
	lines := []string{
		"Public dashboard: " + public,
		"Export format:    " + a.format(),
		"Last page:        " + a.settings.LastPage(config.PageOverview),
		"Settings store:   " + store.Path(),
	}
	if link, err := a.exporter.URL(export.Format(a.format())); err == nil {
		lines = append(lines, "Export link:      "+link)
	}
	if a.polls != nil {
		if n, err := a.polls.Count(ctx); err == nil {
			lines = append(lines, "Poll log rows:    "+humanize.Comma(int64(n)))
		}
	}
	return lines
}

func (a *settingsActions) format() string {
	f, err := export.ParseFormat(a.settings.ExportFormat(a.defFormat))
	if err != nil {
		return a.defFormat
	}
	return string(f)
}

func (a *settingsActions) changed(ctx context.Context) {
	if a.refresh != nil {
		a.refresh(a.Lines(ctx))
	}
}

func (a *settingsActions) togglePublic(ctx context.Context) {
	ok, err := a.dialogs.Confirm(ctx, "Public dashboard", "Change the public visibility of this dashboard?")
	if err != nil || !ok {
		return
	}
	enabled, err := a.settings.TogglePublic(ctx)
	if err != nil {
		log.Printf("Settings: toggle public dashboard failed: %v", err)
		a.alert(ctx, "Public dashboard", "Could not update the flag: "+err.Error())
		return
	}
	log.Printf("Settings: public dashboard now %v", enabled)
	a.changed(ctx)
}

func (a *settingsActions) download(ctx context.Context, format export.Format) {
	a.dialogs.ShowLoading("Exporting " + strings.ToUpper(string(format)) + "...")
	res, err := a.exporter.Download(ctx, format)
	a.dialogs.HideLoading()
	if err != nil {
		log.Printf("Export: %s download failed: %v", format, err)
		a.alert(ctx, "Export", "Export failed: "+err.Error())
		return
	}
	a.alert(ctx, "Export", fmt.Sprintf("Saved %s (%s, %s)", res.Path, humanize.Bytes(uint64(res.Bytes)), res.Status))
}

func (a *settingsActions) copyLink(ctx context.Context) {
	link, err := a.exporter.URL(export.Format(a.format()))
	if err == nil {
		err = export.WriteClipboard(a.clipboard, link)
	}
	if err != nil {
		log.Printf("Export: copy link failed: %v", err)
		a.alert(ctx, "Export link", "Could not copy the link: "+err.Error())
		return
	}
	log.Printf("Export: copied %s to clipboard", link)
}

func (a *settingsActions) setFormat(ctx context.Context) {
	value, err := a.dialogs.Prompt(ctx, "Export format", "Format (csv or json)", a.format())
	if err != nil {
		return
	}
	format, err := export.ParseFormat(value)
	if err != nil {
		a.alert(ctx, "Export format", err.Error())
		return
	}
	if err := a.settings.SetExportFormat(string(format)); err != nil {
		log.Printf("Settings: save export format failed: %v", err)
		return
	}
	a.changed(ctx)
}

func (a *settingsActions) resetSettings(ctx context.Context) {
	ok, err := a.dialogs.Confirm(ctx, "Reset settings", "Forget every locally stored setting?")
	if err != nil || !ok {
		return
	}
	if err := a.settings.Reset(); err != nil {
		log.Printf("Settings: reset failed: %v", err)
		a.alert(ctx, "Reset settings", "Reset failed: "+err.Error())
		return
	}
	log.Printf("Settings: local settings reset")
	a.changed(ctx)
}

func (a *settingsActions) clearPolls(ctx context.Context) {
	ok, err := a.dialogs.Confirm(ctx, "Clear poll log", "Delete every recorded poll?")
	if err != nil || !ok {
		return
	}
	if err := a.polls.Clear(ctx); err != nil {
		log.Printf("Recorder: clear failed: %v", err)
		a.alert(ctx, "Clear poll log", "Clear failed: "+err.Error())
		return
	}
	log.Printf("Recorder: poll log cleared")
	a.changed(ctx)
}

func (a *settingsActions) alert(ctx context.Context, title, message string) {
	if err := a.dialogs.Alert(ctx, title, message); err != nil && !errors.Is(err, ui.ErrDialogClosed) {
		log.Printf("UI: alert failed: %v", err)
	}
}
