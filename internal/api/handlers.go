package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amishk599/jobhound/internal/ai"
	"github.com/amishk599/jobhound/internal/model"
	"github.com/amishk599/jobhound/internal/pipeline"
)

type pendingQuery struct {
	Limit         int  `form:"limit" binding:"omitempty,min=1,max=500"`
	IncludePrompt bool `form:"include_prompt"`
}

// pendingJob is a posting awaiting an AI score.
type pendingJob struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Company      string  `json:"company"`
	Location     string  `json:"location"`
	ContractType string  `json:"contract_type"`
	Description  string  `json:"description"`
	KeywordScore float64 `json:"keyword_score"`
	URL          string  `json:"url"`
	Prompt       string  `json:"prompt,omitempty"`
}

type scoreSubmission struct {
	JobID     int64    `json:"job_id" binding:"required"`
	AIScore   *float64 `json:"ai_score" binding:"required,min=0,max=100"`
	Reasoning string   `json:"reasoning"`
}

type bulkScoreSubmission struct {
	Scores []scoreSubmission `json:"scores" binding:"required,dive"`
}

type statsResponse struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	Scored   int `json:"scored"`
	Notified int `json:"notified"`
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) pendingJobs(c *gin.Context) {
	var q pendingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if q.Limit == 0 {
		q.Limit = s.cfg.DefaultLimit
	}

	postings, err := s.store.GetScorable(c.Request.Context(), s.cfg.KeywordThreshold, q.Limit)
	if err != nil {
		s.logger.Error("failed to load scorable postings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to load postings"})
		return
	}

	jobs := make([]pendingJob, 0, len(postings))
	for _, p := range postings {
		job := pendingJob{
			ID:           p.ID,
			Title:        p.Title,
			Company:      p.Company,
			Location:     p.Location,
			ContractType: p.ContractType,
			Description:  p.Description,
			URL:          p.URL,
		}
		if p.KeywordScore != nil {
			job.KeywordScore = *p.KeywordScore
		}
		if q.IncludePrompt {
			prompt, err := ai.BuildPrompt(p.Posting, s.profile)
			if err != nil {
				s.logger.Error("failed to build prompt", "id", p.ID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to build prompt"})
				return
			}
			job.Prompt = prompt
		}
		jobs = append(jobs, job)
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) submitScores(c *gin.Context) {
	var body bulkScoreSubmission
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	scores := make([]model.AIScore, 0, len(body.Scores))
	for _, sub := range body.Scores {
		scores = append(scores, model.AIScore{
			PostingID: sub.JobID,
			Score:     *sub.AIScore,
			Reasoning: sub.Reasoning,
		})
	}

	report, err := s.scores.ApplyAIScores(c.Request.Context(), scores)
	if err != nil {
		s.logger.Error("failed to apply scores", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to apply scores"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": report.Updated, "notified": report.Notified})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to load stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, statsResponse{
		Total:    st.Total,
		New:      st.New,
		Scored:   st.Scored,
		Notified: st.Notified,
		Pending:  st.Pending,
		Failed:   st.Failed,
	})
}

func (s *Server) triggerScrape(c *gin.Context) {
	if s.starter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "scrape trigger not configured"})
		return
	}
	if err := s.starter.StartCycle(s.baseCtx); err != nil {
		if errors.Is(err, pipeline.ErrCycleInProgress) {
			c.JSON(http.StatusConflict, gin.H{"detail": "a scrape cycle is already running"})
			return
		}
		s.logger.Error("failed to start cycle", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to start cycle"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
