package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/basket/taskdeck/internal/tasks"
)

func (m model) updateTasksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		m.screen = screenChat
		m.chatInput.Focus()
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		return m, nil

	case "r":
		m.loading = true
		return m, tea.Batch(m.loadTasksCmd(), m.loadStatsCmd())

	case "f":
		m.filter = nextFilter(m.filter)
		m.reproject()
		return m, nil
	case "s":
		if m.sortBy == tasks.SortNewest {
			m.sortBy = tasks.SortOldest
		} else {
			m.sortBy = tasks.SortNewest
		}
		m.reproject()
		return m, nil

	case "enter", " ":
		if t, ok := m.selectedTask(); ok {
			return m, m.toggleCmd(t.ID)
		}
		return m, nil

	case "a":
		m.adding = true
		m.titleInput.SetValue("")
		m.titleInput.Focus()
		return m, nil

	case "d":
		// Deletion is destructive and unconfirmed writes never happen;
		// arm the y/n modal instead of deleting outright.
		if t, ok := m.selectedTask(); ok {
			m.pendingDelete = t.ID
		}
		return m, nil
	}
	return m, nil
}

func (m model) updateAddKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.adding = false
		m.titleInput.Blur()
		return m, nil
	case "enter":
		title := strings.TrimSpace(m.titleInput.Value())
		m.adding = false
		m.titleInput.Blur()
		if title == "" {
			return m, nil
		}
		return m, m.createCmd(title)
	}
	var cmd tea.Cmd
	m.titleInput, cmd = m.titleInput.Update(msg)
	return m, cmd
}

func (m model) updateConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		id := m.pendingDelete
		m.pendingDelete = ""
		return m, m.deleteCmd(id)
	case "n", "N", "esc":
		m.pendingDelete = ""
		return m, nil
	}
	return m, nil
}

func (m model) selectedTask() (tasks.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return tasks.Task{}, false
	}
	return m.rows[m.cursor], true
}

func nextFilter(f tasks.Filter) tasks.Filter {
	switch f {
	case tasks.FilterAll:
		return tasks.FilterActive
	case tasks.FilterActive:
		return tasks.FilterCompleted
	default:
		return tasks.FilterAll
	}
}

func (m model) tasksView() string {
	var b strings.Builder

	if m.statsKnown {
		b.WriteString(headerStyle.Render(fmt.Sprintf(
			"%d tasks · %d done · %d pending · %.0f%% complete",
			m.stats.TotalTasks, m.stats.CompletedTasks,
			m.stats.PendingTasks, m.stats.CompletionRate)))
		b.WriteString("\n")
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("filter: %s · sort: %s", m.filter, m.sortBy)))
	b.WriteString("\n\n")

	if m.loading {
		b.WriteString(hintStyle.Render("loading..."))
		b.WriteString("\n")
		return b.String()
	}

	if len(m.rows) == 0 {
		b.WriteString(hintStyle.Render("no tasks yet, press a to add one"))
		b.WriteString("\n")
	}
	for i, t := range m.rows {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s", mark, t.Title)
		if t.Description != "" {
			line += headerStyle.Render("  " + t.Description)
		}
		switch {
		case i == m.cursor:
			line = selectedStyle.Render(line)
		case t.Completed:
			line = doneStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.adding:
		b.WriteString(promptStyle.Render("new task: "))
		b.WriteString(m.titleInput.View())
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("enter: save · esc: cancel"))
	case m.pendingDelete != "":
		title := m.pendingDelete
		if t, ok := m.app.Tasks.Get(m.pendingDelete); ok {
			title = t.Title
		}
		b.WriteString(errStyle.Render(fmt.Sprintf("delete %q? (y/n)", title)))
	default:
		b.WriteString(hintStyle.Render("j/k: move · space: toggle · a: add · d: delete · f: filter · s: sort · r: refresh"))
	}
	b.WriteString("\n")

	return b.String()
}
