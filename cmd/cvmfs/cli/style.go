// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Styles highlights listing output. The zero value renders plain text.
type Styles struct {
	enabled    bool
	directory  lipgloss.Style
	mountpoint lipgloss.Style
	symlink    lipgloss.Style
	label      lipgloss.Style
	failure    lipgloss.Style
	success    lipgloss.Style
}

// StylesFor returns highlighting styles when w is a terminal and
// NO_COLOR is unset, plain styles otherwise.
func StylesFor(w io.Writer) Styles {
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) || os.Getenv("NO_COLOR") != "" {
		return Styles{}
	}
	return Styles{
		enabled:    true,
		directory:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		mountpoint: lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
		symlink:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		label:      lipgloss.NewStyle().Faint(true),
		failure:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		success:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	}
}

func (s Styles) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

func (s Styles) Directory(text string) string  { return s.render(s.directory, text) }
func (s Styles) Mountpoint(text string) string { return s.render(s.mountpoint, text) }
func (s Styles) Symlink(text string) string    { return s.render(s.symlink, text) }
func (s Styles) Label(text string) string      { return s.render(s.label, text) }
func (s Styles) Failure(text string) string    { return s.render(s.failure, text) }
func (s Styles) Success(text string) string    { return s.render(s.success, text) }
