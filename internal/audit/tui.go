package audit

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/notifier"
)

// Lines per posting in the list view (title + subtitle + blank separator).
const postingItemHeight = 3

const timeLayout = "2006-01-02 15:04"

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")). // bright white
				Background(lipgloss.Color("24"))  // dark blue bg

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	descDividerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	descHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	descBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// ScoreFunc AI-scores one posting and returns it with its new scores applied.
type ScoreFunc func(ctx context.Context, p model.StoredPosting) (model.StoredPosting, error)

// Options configures the browser.
type Options struct {
	// Postings whose keyword score reaches this value are shortlisted in the
	// right pane.
	KeywordThreshold float64
	// Score may be nil; when set the 's' key scores the posting in the
	// detail view.
	Score ScoreFunc
}

// postingScoredMsg is sent when an async AI scoring completes.
type postingScoredMsg struct {
	posting model.StoredPosting
	err     error
}

type auditModel struct {
	all           []model.StoredPosting
	shortlist     []model.StoredPosting
	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int // 0=left, 1=right
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	opts          Options
	ready         bool

	// Detail view state
	view            viewState
	detail          model.StoredPosting
	detailViewport  viewport.Model
	showDescription bool

	scoreLoading bool
	scoreError   string

	wantQuit bool
}

func newAuditModel(postings []model.StoredPosting, opts Options) auditModel {
	all := append([]model.StoredPosting(nil), postings...)
	sortPostings(all)
	return auditModel{
		all:       all,
		shortlist: shortlist(all, opts.KeywordThreshold),
		opts:      opts,
	}
}

func (m auditModel) Init() tea.Cmd {
	return nil
}

func (m auditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case postingScoredMsg:
		m.scoreLoading = false
		if msg.err != nil {
			m.scoreError = fmt.Sprintf("scoring failed: %v", msg.err)
		} else {
			m.scoreError = ""
			m.detail = msg.posting
			m.updatePosting(msg.posting)
		}
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m auditModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	// Forward other keys (pgup/pgdn/home/end) to the active viewport.
	var cmd tea.Cmd
	if m.activePane == 0 {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m auditModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		openURL(m.detail.URL)
		return m, nil
	case "r":
		if m.detail.Description != "" {
			m.showDescription = !m.showDescription
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	case "s":
		if m.canScore() {
			m.scoreLoading = true
			m.scoreError = ""
			m.detailViewport.SetContent(m.renderDetail())
			return m, m.scoreCmd(m.detail)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

// canScore reports whether 's' may start an AI scoring of the open posting.
func (m auditModel) canScore() bool {
	return m.opts.Score != nil && !m.scoreLoading && m.detail.AIScore == nil
}

func (m auditModel) scoreCmd(p model.StoredPosting) tea.Cmd {
	score := m.opts.Score
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		scored, err := score(ctx, p)
		return postingScoredMsg{posting: scored, err: err}
	}
}

func (m *auditModel) moveCursor(delta int) {
	if m.activePane == 0 {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.all)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.shortlist)-1, 0))
	}
}

func (m *auditModel) ensureCursorVisible() {
	var vp *viewport.Model
	var cursor int
	if m.activePane == 0 {
		vp = &m.leftViewport
		cursor = m.leftCursor
	} else {
		vp = &m.rightViewport
		cursor = m.rightCursor
	}

	cursorTop := cursor * postingItemHeight
	cursorBottom := cursorTop + postingItemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m auditModel) openDetailView() (tea.Model, tea.Cmd) {
	postings := m.activePostings()
	if len(postings) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detail = postings[m.activeCursor()]
	m.scoreError = ""
	m.showDescription = false
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *auditModel) updatePosting(p model.StoredPosting) {
	for i := range m.all {
		if m.all[i].ID == p.ID {
			m.all[i] = p
			break
		}
	}
	for i := range m.shortlist {
		if m.shortlist[i].ID == p.ID {
			m.shortlist[i] = p
			break
		}
	}
	if m.ready {
		m.recalcContent()
	}
}

func (m *auditModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *auditModel) recalcContent() {
	m.leftViewport.SetContent(renderPostings(m.all, m.leftCursor, m.activePane == 0))
	m.rightViewport.SetContent(renderPostings(m.shortlist, m.rightCursor, m.activePane == 1))
}

func (m auditModel) activePostings() []model.StoredPosting {
	if m.activePane == 0 {
		return m.all
	}
	return m.shortlist
}

func (m auditModel) activeCursor() int {
	if m.activePane == 0 {
		return m.leftCursor
	}
	return m.rightCursor
}

func (m auditModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewList()
}

func (m auditModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" All Postings (%d)", len(m.all))
	rightHeader := fmt.Sprintf(" Shortlist ≥ %.0f (%d)", m.opts.KeywordThreshold, len(m.shortlist))

	var leftHeaderRendered, rightHeaderRendered string
	var leftBorder, rightBorder lipgloss.Style

	if m.activePane == 0 {
		leftHeaderRendered = activeHeaderStyle.Render(leftHeader)
		rightHeaderRendered = inactiveHeaderStyle.Render(rightHeader)
		leftBorder = activeBorderStyle.Width(paneWidth)
		rightBorder = inactiveBorderStyle.Width(paneWidth)
	} else {
		leftHeaderRendered = inactiveHeaderStyle.Render(leftHeader)
		rightHeaderRendered = activeHeaderStyle.Render(rightHeader)
		leftBorder = inactiveBorderStyle.Width(paneWidth)
		rightBorder = activeBorderStyle.Width(paneWidth)
	}

	leftPane := leftBorder.Render(m.leftViewport.View())
	rightPane := rightBorder.Render(m.rightViewport.View())

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderRendered),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, " ", rightPane)

	statusText := fmt.Sprintf(" %d total | %d shortlisted | %d below threshold    ←/→/Tab switch  ↑/↓ cursor  Enter detail  Esc back  q quit",
		len(m.all), len(m.shortlist), len(m.all)-len(m.shortlist))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m auditModel) viewDetail() string {
	title := detailTitleStyle.Render("Posting Details")
	if m.scoreLoading {
		title += "  (scoring...)"
	}

	border := activeBorderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	hints := []string{"o open URL"}
	if m.detail.Description != "" {
		hints = append(hints, "r desc")
	}
	if m.canScore() {
		hints = append(hints, "s AI score")
	}
	hints = append(hints, "esc/backspace back", "↑/↓ scroll", "q quit")
	statusBar := statusBarStyle.Width(m.width).Render(" " + strings.Join(hints, "  "))

	return title + "\n" + content + "\n" + statusBar
}

func (m auditModel) renderDetail() string {
	p := m.detail
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Title", p.Title)
	addField("Company", p.Company)
	addField("Location", p.Location)
	addField("Contract", p.ContractType)
	addField("Salary", salary(p))
	addField("Source", sourceName(p.Source))

	b.WriteByte('\n')
	addField("Status", string(p.Status))
	addField("Detail", string(p.DetailStatus))
	addField("Keyword score", fmtScore(p.KeywordScore))
	addField("AI score", fmtScore(p.AIScore))
	addField("Final score", fmtScore(p.FinalScore))
	if !p.ScrapedAt.IsZero() {
		addField("Scraped At", p.ScrapedAt.Local().Format(timeLayout))
	}
	if p.ScoredAt != nil {
		addField("Scored At", p.ScoredAt.Local().Format(timeLayout))
	}
	if p.NotifiedAt != nil {
		addField("Notified At", p.NotifiedAt.Local().Format(timeLayout))
	}

	b.WriteByte('\n')
	addField("URL", p.URL)

	if m.scoreError != "" {
		b.WriteByte('\n')
		b.WriteString(errorStyle.Render("⚠ "+m.scoreError) + "\n")
	}

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return descDividerStyle.Render(label + fill)
	}

	switch {
	case p.AIReasoning != "":
		b.WriteByte('\n')
		b.WriteString(divider("── AI Reasoning ") + "\n\n")
		b.WriteString(descBodyStyle.Render(wordWrap(p.AIReasoning, wrapWidth)) + "\n")
	case m.scoreLoading:
		b.WriteByte('\n')
		b.WriteString(descHintStyle.Render("  scoring posting...") + "\n")
	case m.scoreError == "" && m.canScore():
		b.WriteByte('\n')
		b.WriteString(descHintStyle.Render("  press s to score this posting with AI") + "\n")
	}

	if p.Description != "" {
		b.WriteByte('\n')
		if m.showDescription {
			b.WriteString(divider("── Description ") + "\n\n")
			b.WriteString(descBodyStyle.Render(wordWrap(p.Description, wrapWidth)) + "\n")
		} else {
			b.WriteString(descHintStyle.Render("  press r to read the description") + "\n")
		}
	}

	return b.String()
}

func renderPostings(postings []model.StoredPosting, cursor int, isActive bool) string {
	if len(postings) == 0 {
		return "  (no postings)"
	}

	var b strings.Builder
	for i, p := range postings {
		isSelected := isActive && i == cursor

		titleSt := titleStyle
		subtitleSt := subtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedTitleStyle
			subtitleSt = selectedSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(fmt.Sprintf("%s · %s", p.Title, p.Company)))
		b.WriteByte('\n')

		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · kw %s · ai %s · %s",
			orDash(p.Location), fmtScore(p.KeywordScore), fmtScore(p.AIScore), p.ScrapedAt.Format("2006-01-02"))))
		b.WriteByte('\n')

		if i < len(postings)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// shortlist returns the postings whose keyword score reaches threshold.
func shortlist(postings []model.StoredPosting, threshold float64) []model.StoredPosting {
	var out []model.StoredPosting
	for _, p := range postings {
		if p.KeywordScore != nil && *p.KeywordScore >= threshold {
			out = append(out, p)
		}
	}
	return out
}

// sortPostings orders by final score, then keyword score, then newest first.
// Unscored postings sort last.
func sortPostings(postings []model.StoredPosting) {
	sort.SliceStable(postings, func(i, j int) bool {
		a, b := postings[i], postings[j]
		if c := compareScore(a.FinalScore, b.FinalScore); c != 0 {
			return c > 0
		}
		if c := compareScore(a.KeywordScore, b.KeywordScore); c != 0 {
			return c > 0
		}
		return a.ScrapedAt.After(b.ScrapedAt)
	})
}

func compareScore(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a > *b:
		return 1
	case *a < *b:
		return -1
	}
	return 0
}

func fmtScore(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *s)
}

func salary(p model.StoredPosting) string {
	if p.SalaryMin == nil && p.SalaryMax == nil {
		return ""
	}
	return notifier.FormatSalary(p.SalaryMin, p.SalaryMax)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// RunBrowser launches the interactive split-pane postings browser.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed esc to return to the picker.
func RunBrowser(postings []model.StoredPosting, opts Options) (bool, error) {
	p := tea.NewProgram(newAuditModel(postings, opts), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	final := result.(auditModel)
	return final.wantQuit, nil
}
