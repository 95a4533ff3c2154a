package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shouni/go-coloring-kit/internal/builder"
	"github.com/shouni/go-coloring-kit/internal/config"
	"github.com/shouni/go-coloring-kit/pkg/asset"
	"github.com/shouni/go-coloring-kit/pkg/domain"
	"github.com/shouni/go-coloring-kit/pkg/quality"
	"github.com/shouni/go-coloring-kit/pkg/scheduler"
	"github.com/shouni/go-coloring-kit/pkg/synth"
)

// --- バッチ生成 ---

type batchRequest struct {
	Pages       []domain.ScenePrompt `json:"pages"`
	Size        string               `json:"size,omitempty"`
	Complexity  string               `json:"complexity,omitempty"`
	Mode        string               `json:"mode,omitempty"`
	Concurrency int                  `json:"concurrency,omitempty"`
}

type batchPageResult struct {
	Page        int    `json:"page"`
	Status      string `json:"status"`
	ImageBase64 []byte `json:"imageBase64,omitempty"`
	Warning     string `json:"warning,omitempty"`
	Error       string `json:"error,omitempty"`
}

type batchResponse struct {
	Results      []batchPageResult `json:"results"`
	SuccessCount int               `json:"successCount"`
	FailCount    int               `json:"failCount"`
}

func (s *Server) handleBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストのデコードに失敗しました")
	}
	if len(req.Pages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "pages は1件以上必要です")
	}
	for _, p := range req.Pages {
		if err := p.Validate(); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	style, err := s.resolveStyle(req.Size, req.Complexity, req.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	orch, err := builder.BuildPageOrchestrator(s.appCtx, style, nil)
	if err != nil {
		return err
	}
	sched := scheduler.New(orch, scheduler.Options{
		Concurrency: req.Concurrency,
		WindowDelay: config.DefaultWindowDelay,
	})

	result, runErr := sched.Run(c.Request().Context(), req.Pages)
	if runErr != nil {
		return runErr
	}

	resp := batchResponse{
		Results:      make([]batchPageResult, 0, len(result.Outcomes)),
		SuccessCount: result.SuccessCount,
		FailCount:    result.FailCount,
	}
	for _, o := range result.Outcomes {
		r := batchPageResult{
			Page:    o.PageIndex,
			Status:  string(o.Status),
			Warning: o.Warning,
		}
		if o.Status == domain.PageDone {
			r.ImageBase64 = o.ImageBytes
		} else if o.LastError != nil {
			r.Error = o.LastError.Error()
		}
		resp.Results = append(resp.Results, r)
	}
	return c.JSON(http.StatusOK, resp)
}

// --- 単一ページ再生成 ---

type regenerateRequest struct {
	Prompt              string                   `json:"prompt"`
	Size                string                   `json:"size,omitempty"`
	CharacterProfile    *domain.CharacterProfile `json:"characterProfile,omitempty"`
	ValidateOutline     *bool                    `json:"validateOutline,omitempty"`
	ValidateCharacter   *bool                    `json:"validateCharacter,omitempty"`
	ValidateComposition *bool                    `json:"validateComposition,omitempty"`
}

type regenerateResponse struct {
	OK          bool                   `json:"ok"`
	ImageBase64 []byte                 `json:"imageBase64,omitempty"`
	Attempts    int                    `json:"attempts,omitempty"`
	Validation  *domain.QualityMetrics `json:"validation,omitempty"`
	Warning     string                 `json:"warning,omitempty"`
	Error       string                 `json:"error,omitempty"`
	ErrorCode   string                 `json:"errorCode,omitempty"`
}

func (s *Server) handleRegenerate(c echo.Context) error {
	var req regenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストのデコードに失敗しました")
	}

	scene := domain.ScenePrompt{PageIndex: 1, RawText: req.Prompt}
	if err := scene.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	style, err := s.resolveStyle(req.Size, "", "")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// 省略されたトグルは有効として扱います。
	checks := quality.Checks{
		Outline:     boolOrTrue(req.ValidateOutline),
		Composition: boolOrTrue(req.ValidateComposition),
		Character:   boolOrTrue(req.ValidateCharacter),
	}

	orch, err := builder.BuildPageOrchestratorWithChecks(s.appCtx, style, req.CharacterProfile, checks)
	if err != nil {
		return err
	}

	outcome := orch.Run(c.Request().Context(), scene)
	if outcome.Status != domain.PageDone {
		return c.JSON(http.StatusUnprocessableEntity, regenerateResponse{
			OK:        false,
			Error:     errorMessage(outcome.LastError),
			ErrorCode: providerErrorCode(outcome.LastError),
		})
	}

	return c.JSON(http.StatusOK, regenerateResponse{
		OK:          true,
		ImageBase64: outcome.ImageBytes,
		Attempts:    outcome.Attempts,
		Validation:  outcome.Metrics,
		Warning:     outcome.Warning,
	})
}

// --- アセット永続化 ---

type persistAssetRequest struct {
	ProjectID  string `json:"projectId"`
	UserID     string `json:"userId"`
	PageNumber *int   `json:"pageNumber,omitempty"`
	AssetType  string `json:"assetType"`
	ImageBytes []byte `json:"imageBytes"`
	Plan       string `json:"plan,omitempty"`
}

type persistAssetResponse struct {
	AssetID     string     `json:"assetId"`
	StoragePath string     `json:"storagePath"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

func (s *Server) handlePersistAsset(c echo.Context) error {
	var req persistAssetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストのデコードに失敗しました")
	}

	manager, store, err := builder.BuildAssetManager(s.appCtx)
	if err != nil {
		return err
	}
	defer store.Close()

	stored, err := manager.Persist(c.Request().Context(), asset.PersistRequest{
		ProjectID:  req.ProjectID,
		UserID:     req.UserID,
		PageNumber: req.PageNumber,
		AssetType:  domain.AssetType(req.AssetType),
		Plan:       req.Plan,
		Data:       req.ImageBytes,
	})
	if err != nil {
		// 永続化の失敗は呼び出し元へそのまま返します。黙殺するとメタデータと
		// ストレージの不整合に気付けなくなります。
		return err
	}

	return c.JSON(http.StatusOK, persistAssetResponse{
		AssetID:     stored.ID,
		StoragePath: stored.StoragePath,
		ExpiresAt:   stored.ExpiresAt,
	})
}

// --- クリーンアップスイープ ---

type sweepRequest struct {
	BatchSize int `json:"batchSize,omitempty"`
}

func (s *Server) handleSweep(c echo.Context) error {
	var req sweepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストのデコードに失敗しました")
	}
	if req.BatchSize <= 0 {
		req.BatchSize = config.DefaultSweepBatch
	}

	manager, store, err := builder.BuildAssetManager(s.appCtx)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := manager.Sweep(c.Request().Context(), req.BatchSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// --- ヘルパー ---

// resolveStyle はCLIオプションのスタイルをベースに、リクエストの指定で上書きします。
func (s *Server) resolveStyle(size, complexity, mode string) (domain.StyleConfig, error) {
	style, err := s.appCtx.Options.Style()
	if err != nil {
		return domain.StyleConfig{}, err
	}
	if size != "" {
		cs, err := domain.ParseCanvasSize(size)
		if err != nil {
			return domain.StyleConfig{}, err
		}
		style.CanvasSize = cs
	}
	if complexity != "" {
		style.Complexity = domain.Complexity(complexity)
	}
	if mode != "" {
		style.Mode = domain.Mode(mode)
	}
	if err := style.Validate(); err != nil {
		return domain.StyleConfig{}, err
	}
	return style, nil
}

func boolOrTrue(b *bool) bool {
	if b == nil {
		return true
	}
	return *b
}

func errorMessage(err error) string {
	if err == nil {
		return "ページの生成に失敗しました"
	}
	return err.Error()
}

// providerErrorCode はエラー分類をAPIのエラーコードへ写像します。
func providerErrorCode(err error) string {
	if pe, ok := synth.AsProviderError(err); ok {
		return string(pe.Kind)
	}
	return "exhausted"
}
