package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/accountpool/internal/application"
	"github.com/bnema/accountpool/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const loadBarWidth = 16

type RenderOptions struct {
	// Now anchors relative times; zero prints absolute timestamps.
	Now time.Time
}

func renderView(pools []application.PoolStatus, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Account Pools"),
		s.header.Render(fmt.Sprintf("pools: %d", len(pools))),
	}

	if len(pools) == 0 {
		lines = append(lines, s.empty.Render("No pools configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, pool := range pools {
		lines = append(lines, s.section.Render(renderPool(pool, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderPool(status application.PoolStatus, opts RenderOptions, s styles) string {
	pool := status.Pool
	parts := []string{
		s.account.Render(fmt.Sprintf("%s (%s, %s)", pool.ID, pool.Mode, pool.Provider)),
		s.header.Render(scheduleLine(pool, opts)),
	}

	if len(status.Accounts) == 0 {
		parts = append(parts, s.empty.Render("no accounts"))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	for _, view := range status.Accounts {
		parts = append(parts, accountLine(view, pool, opts, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func scheduleLine(pool domain.Pool, opts RenderOptions) string {
	if pool.Mode == domain.PoolModeWeighted {
		if pool.MaxConcurrent <= 0 {
			return "max concurrent: unbounded"
		}
		return fmt.Sprintf("max concurrent: %d per account", pool.MaxConcurrent)
	}

	if pool.NextSwitchTime == nil {
		return "next switch: not scheduled"
	}
	return "next switch: " + formatRelative(*pool.NextSwitchTime, opts.Now, "now")
}

func accountLine(view application.AccountView, pool domain.Pool, opts RenderOptions, s styles) string {
	account := view.Account

	marker := "  "
	name := s.detail.Render(accountTitle(account.Name, account.ID))
	if pool.Mode == domain.PoolModeRotation && account.Serving() {
		marker = s.serving.Render("> ")
		name = s.serving.Render(accountTitle(account.Name, account.ID))
	}

	segments := []string{
		marker,
		name,
		" ",
		s.status(account.Status).Render("[" + string(account.Status) + "]"),
	}

	if pool.Mode == domain.PoolModeWeighted {
		segments = append(segments, " ", s.detail.Render(fmt.Sprintf("weight %d", account.Weight)))
	}

	if view.Health != nil {
		segments = append(segments, " ", loadLine(view.Health.ActiveCount, pool.MaxConcurrent, s))
	}

	line := lipgloss.JoinHorizontal(lipgloss.Top, segments...)

	if view.Health != nil && view.Health.CooldownUntil != nil && (opts.Now.IsZero() || view.Health.CooldownUntil.After(opts.Now)) {
		line += " " + s.warning.Render("[cooldown, resumes "+formatRelative(*view.Health.CooldownUntil, opts.Now, "now")+"]")
	}

	switch {
	case account.Status == domain.AccountStatusDisabled:
		line += " " + s.warning.Render("excluded")
	case account.DisabledAt != nil:
		line += " " + s.empty.Render("resting since "+formatClock(*account.DisabledAt, opts.Now))
	}

	return line
}

func loadLine(active, capacity int, s styles) string {
	if capacity <= 0 {
		return s.detail.Render(fmt.Sprintf("%d in flight", active))
	}

	used := clampPercent(float64(active) / float64(capacity) * 100)
	countStyle := lipgloss.NewStyle().Foreground(interpolateColor(100-used, 0, 100))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		renderProgressBar(used, loadBarWidth, s),
		" ",
		countStyle.Render(fmt.Sprintf("%d/%d in flight", active, capacity)),
	)
}

// renderProgressBar fills the bar in proportion to usedPercent.
func renderProgressBar(usedPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	used := clampPercent(usedPercent)
	filled := int(math.Round(float64(width) * used / 100.0))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatClock(at, now time.Time) string {
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	yearA, monthA, dayA := now.Date()
	yearB, monthB, dayB := at.Date()
	if yearA == yearB && monthA == monthB && dayA == dayB {
		return at.Format("15:04")
	}

	return at.Format("15:04 on 02 Jan")
}

func formatRelative(at, now time.Time, past string) string {
	if now.IsZero() {
		return "at " + formatClock(at, now)
	}

	if !at.After(now) {
		return past
	}

	remaining := at.Sub(now)
	if remaining < time.Hour {
		minutes := int(math.Ceil(remaining.Minutes()))
		suffix := "minutes"
		if minutes == 1 {
			suffix = "minute"
		}
		return fmt.Sprintf("in %d %s (%s)", minutes, suffix, at.Format("15:04"))
	}

	if remaining < 24*time.Hour {
		hours := int(math.Ceil(remaining.Hours()))
		suffix := "hours"
		if hours == 1 {
			suffix = "hour"
		}
		return fmt.Sprintf("in %d %s (%s)", hours, suffix, at.Format("15:04"))
	}

	days := int(math.Ceil(remaining.Hours() / 24))
	suffix := "days"
	if days == 1 {
		suffix = "day"
	}

	return fmt.Sprintf("in %d %s (%s)", days, suffix, at.Format("15:04 on 02 Jan"))
}

func accountTitle(name string, id domain.AccountID) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == string(id) {
		return string(id)
	}
	return fmt.Sprintf("%s (%s)", trimmed, id)
}

// interpolateColor maps value onto the 240..255 greyscale ramp.
func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}
