package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/postsiva/postsiva-cli/internal/state"
	"github.com/postsiva/postsiva-cli/internal/tiktok"
)

func (m AppModel) View() string {
	sections := []string{titleStyle.Render("TikTok Dashboard"), ""}

	data := m.current.Data()
	switch st := m.current.(type) {
	case state.Idle[tiktok.ProfileState]:
		sections = append(sections, mutedStyle.Render("No profile loaded yet."))
	case state.Loading[tiktok.ProfileState]:
		sections = append(sections, m.spinner.View()+" Loading profile...")
		if data.Profile != nil {
			sections = append(sections, "", renderProfile(data))
		}
	case state.Success[tiktok.ProfileState]:
		if data.Profile == nil {
			sections = append(sections, mutedStyle.Render("The backend returned no profile."))
		} else {
			sections = append(sections, renderProfile(data))
		}
	case state.Failed[tiktok.ProfileState]:
		sections = append(sections, errorMessageStyle(st.Cause.Message))
	}

	sections = append(sections, "", mutedStyle.Render(m.help()))
	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m AppModel) help() string {
	refresh := m.keys.refresh.Help()
	quit := m.keys.quit.Help()
	return fmt.Sprintf("%s %s • %s %s", refresh.Key, refresh.Desc, quit.Key, quit.Desc)
}

func renderProfile(p tiktok.ProfileState) string {
	profile := p.Profile

	header := nameStyle.Render(profile.DisplayName)
	if profile.Username != "" {
		header += " " + mutedStyle.Render("@"+profile.Username)
	}
	if profile.IsVerified {
		header += " " + verifiedStyle("✓ verified")
	}

	lines := []string{header}
	if bio := strings.TrimSpace(profile.BioDescription); bio != "" {
		lines = append(lines, bio)
	}
	lines = append(lines, "",
		lipgloss.JoinHorizontal(lipgloss.Top,
			stat("Followers", profile.FollowerCount),
			stat("Following", profile.FollowingCount),
			stat("Likes", profile.LikesCount),
			stat("Videos", profile.VideoCount),
		),
	)

	var meta []string
	if p.Source != "" {
		meta = append(meta, "source: "+p.Source)
	}
	if p.LastUpdated != "" {
		meta = append(meta, "updated: "+p.LastUpdated)
	}
	if len(meta) > 0 {
		lines = append(lines, "", mutedStyle.Render(strings.Join(meta, "  ")))
	}

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func stat(label string, n int64) string {
	return lipgloss.NewStyle().PaddingRight(4).Render(lipgloss.JoinVertical(lipgloss.Left,
		statValueStyle.Render(tiktok.FormatCount(n)),
		label,
		mutedStyle.Render(tiktok.GroupDigits(n)),
	))
}
