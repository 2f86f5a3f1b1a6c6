package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/polysampler-go/internal/debug"
	"github.com/cbegin/polysampler-go/internal/engine"
	"github.com/cbegin/polysampler-go/internal/voice"
)

// Synth is the part of the player the monitor drives.
type Synth interface {
	Snapshot() engine.Snapshot
	NoteOn(key, velocity uint8) bool
	NoteOff(key uint8) bool
	MasterVolume() float64
	SetMasterVolume(v float64)
	Pause()
	Resume()
}

// keyboard maps the home rows to one octave starting at the base key.
var keyboard = map[string]uint8{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6,
	"g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12,
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func noteName(key uint8) string {
	return fmt.Sprintf("%s%d", noteNames[key%12], int(key)/12-1)
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	playingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	releasingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type Model struct {
	synth    Synth
	title    string
	snap     engine.Snapshot
	held     map[uint8]time.Time
	base     uint8
	paused   bool
	quitting bool
	width    int
	height   int
}

func NewModel(synth Synth, title string) Model {
	return Model{synth: synth, title: title, held: map[uint8]time.Time{}, base: 60}
}

func (m Model) Init() tea.Cmd { return tick() }

// heldFor is how long a keyboard note sounds; terminals report key presses
// but not releases.
const heldFor = 400 * time.Millisecond

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			m.quitting = true
			for k := range m.held {
				m.synth.NoteOff(k)
			}
			return m, tea.Quit
		case " ":
			if m.paused {
				m.synth.Resume()
			} else {
				m.synth.Pause()
			}
			m.paused = !m.paused
		case "+", "=":
			m.synth.SetMasterVolume(m.synth.MasterVolume() + 0.1)
		case "-", "_":
			m.synth.SetMasterVolume(max(0, m.synth.MasterVolume()-0.1))
		case "z":
			if m.base >= 12 {
				m.base -= 12
			}
		case "x":
			if m.base <= 103 {
				m.base += 12
			}
		default:
			if off, ok := keyboard[key]; ok {
				note := m.base + off
				m.synth.NoteOn(note, 100)
				m.held[note] = time.Now().Add(heldFor)
			}
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tickMsg:
		now := time.Time(msg)
		for k, until := range m.held {
			if now.After(until) {
				m.synth.NoteOff(k)
				delete(m.held, k)
			}
		}
		m.snap = m.synth.Snapshot()
		st := m.snap.Stats
		debug.Rising("engine", "underruns", st.Underruns)
		debug.Rising("engine", "dropped", st.Dropped)
		debug.Rising("engine", "overflow", st.Overflow)
		debug.Rising("engine", "steals", st.Steals)
		return m, tick()
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	c := m.snap.Counts
	state := "PLAY"
	if m.paused {
		state = "PAUSE"
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s  %s  vol %.1f  octave %s",
		m.title, state, m.synth.MasterVolume(), noteName(m.base))))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("block %d  playing %d  releasing %d  idle %d\n",
		m.snap.Block, c.Playing, c.Releasing, c.Idle))

	st := m.snap.Stats
	stats := fmt.Sprintf("steals %d  dropped %d  underruns %d  overflow %d  rejected %d",
		st.Steals, st.Dropped, st.Underruns, st.Overflow, st.Rejected)
	if st.Dropped > 0 || st.Underruns > 0 || st.Overflow > 0 {
		b.WriteString(warnStyle.Render(stats))
	} else {
		b.WriteString(dimStyle.Render(stats))
	}
	b.WriteString("\n\n")

	b.WriteString(dimStyle.Render(fmt.Sprintf("%4s %-5s %3s %-9s %-16s %-20s %s", "slot", "note", "vel", "state", "region", "sample", "level")))
	b.WriteString("\n")
	rows := m.snap.Voices
	if limit := m.height - 8; m.height > 0 && limit < len(rows) {
		rows = rows[:max(limit, 0)]
	}
	for _, v := range rows {
		line := fmt.Sprintf("%4d %-5s %3d %-9s %-16s %-20s %s",
			v.Slot, noteName(v.Note), v.Velocity, v.State, clip(v.RegionName, 16), clip(v.Sample, 20), meter(v.Level, 12))
		if v.Sustained {
			line += " sus"
		}
		switch v.State {
		case voice.Playing:
			b.WriteString(playingStyle.Render(line))
		case voice.Releasing:
			b.WriteString(releasingStyle.Render(line))
		default:
			b.WriteString(dimStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if len(rows) < len(m.snap.Voices) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("... %d more", len(m.snap.Voices)-len(rows))))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("a-k:play  z/x:octave  space:pause  +/-:volume  q:quit"))
	return b.String()
}

func meter(level float64, width int) string {
	n := int(level*float64(width) + 0.5)
	n = min(max(n, 0), width)
	return strings.Repeat("#", n) + strings.Repeat(".", width-n)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
