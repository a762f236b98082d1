package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Tim-Alpha/video-description-api/internal/model"
)

// OpenAIClient wraps the transcription and description-generation
// capabilities. When no API key is configured it serves deterministic
// mock responses, which keeps local runs and tests offline.
type OpenAIClient struct {
	api             *openai.Client
	chatModel       string
	visionModel     string
	transcribeModel string
	configured      bool
}

// OpenAIOptions configures the client.
type OpenAIOptions struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	VisionModel     string
	TranscribeModel string
}

func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	if opts.ChatModel == "" {
		opts.ChatModel = openai.GPT4o
	}
	if opts.VisionModel == "" {
		opts.VisionModel = openai.GPT4o
	}
	if opts.TranscribeModel == "" {
		opts.TranscribeModel = openai.Whisper1
	}

	c := &OpenAIClient{
		chatModel:       opts.ChatModel,
		visionModel:     opts.VisionModel,
		transcribeModel: opts.TranscribeModel,
		configured:      opts.APIKey != "",
	}
	if c.configured {
		cfg := openai.DefaultConfig(opts.APIKey)
		if opts.BaseURL != "" {
			cfg.BaseURL = opts.BaseURL
		}
		c.api = openai.NewClientWithConfig(cfg)
	}
	return c
}

// IsConfigured returns true when real API calls will be made.
func (c *OpenAIClient) IsConfigured() bool {
	return c.configured
}

// Transcribe runs speech-to-text over the extracted audio track and
// returns a time-stamped transcript.
func (c *OpenAIClient) Transcribe(ctx context.Context, audioPath string) (*model.Transcript, error) {
	if !c.configured {
		return mockTranscript(), nil
	}

	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcribeModel,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	transcript := &model.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: make([]model.TranscriptSegment, 0, len(resp.Segments)),
	}
	for _, seg := range resp.Segments {
		transcript.Segments = append(transcript.Segments, model.TranscriptSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return transcript, nil
}

// AnalyzeFrames describes the sampled frames with the vision model. The
// returned text feeds the final metadata generation as visual context.
func (c *OpenAIClient) AnalyzeFrames(ctx context.Context, framePaths []string) (string, error) {
	if len(framePaths) == 0 {
		return "", nil
	}
	if !c.configured {
		return fmt.Sprintf("Mock visual analysis over %d sampled frames.", len(framePaths)), nil
	}

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: frameAnalysisPrompt,
	}}
	for _, path := range framePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read frame %s: %w", path, err)
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.visionModel,
		MaxTokens: 500,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", fmt.Errorf("frame analysis request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in frame analysis response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateMetadata produces the structured result bundle from the
// transcript and the visual observations.
func (c *OpenAIClient) GenerateMetadata(ctx context.Context, transcript *model.Transcript, visualSummary string) (*model.AnalysisResult, error) {
	if !c.configured {
		return mockResult(transcript), nil
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Temperature: 0.3,
		MaxTokens:   1500,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: metadataSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildMetadataPrompt(transcript, visualSummary)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("metadata generation request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in metadata response")
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(extractJSON(resp.Choices[0].Message.Content)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse generated metadata: %w", err)
	}
	result.Normalize()
	return &result, nil
}

const frameAnalysisPrompt = `Analyze this series of video frames. Describe:
1. The speaker's actions and expressions
2. Any text overlays or icons and their significance
3. Visual elements and the overall theme visible in these frames
4. Number of human faces visible and the apparent gender of each person
5. Personality traits and demeanor of the main individual
6. Notable interactions, scene changes and visual progression

Describe the progression naturally without mentioning that you saw individual frames.`

const metadataSystemPrompt = `You are an expert content analyst. You respond with a single valid JSON object and nothing else.`

func buildMetadataPrompt(transcript *model.Transcript, visualSummary string) string {
	text := "No audio transcription available."
	if transcript != nil && transcript.Text != "" {
		text = transcript.Text
	}
	if visualSummary == "" {
		visualSummary = "No visual analysis available."
	}

	return fmt.Sprintf(`Analyze the following video and extract metadata in the exact JSON structure below.

Audio Transcription:
%s

Visual Observations:
%s

Respond with this JSON structure, every field present:
{
  "description": "comprehensive description of the video",
  "keywords": [{"keyword": "string", "weight": 1}],
  "topics": ["string"],
  "entities": ["string"],
  "actions": ["string"],
  "emotions": ["string"],
  "visual_elements": ["string"],
  "audio_elements": ["string"],
  "genre": "string",
  "target_audience": ["string"],
  "duration_estimate": "minutes:seconds",
  "quality_indicators": ["string"],
  "unique_identifiers": ["string"],
  "is_face_exist": false,
  "person_identity": {"name": "string", "gender": "string"},
  "other_person_identity": ["string"],
  "psychological_personality": ["string"],
  "no_of_person_in_video": 0,
  "content_warnings": ["string"],
  "safety_analysis": ["string"],
  "is_safe": true
}

Extract at least 5 keywords with weights from 1 to 10. List at least 3 topics
when the material allows. Set no_of_person_in_video to 0 when no person is
visible or mentioned.`, text, visualSummary)
}

// extractJSON trims anything around the outermost JSON object; some models
// wrap their output in code fences despite the response format.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func mockTranscript() *model.Transcript {
	return &model.Transcript{
		Text:     "This is a mock transcription generated without a configured provider.",
		Language: "en",
		Duration: 12.5,
		Segments: []model.TranscriptSegment{
			{Start: 0, End: 6.2, Text: "This is a mock transcription"},
			{Start: 6.2, End: 12.5, Text: "generated without a configured provider."},
		},
	}
}

func mockResult(transcript *model.Transcript) *model.AnalysisResult {
	result := &model.AnalysisResult{
		Description: "Mock description: a short video analyzed without a configured provider.",
		Keywords: []model.Keyword{
			{Keyword: "video", Weight: 8},
			{Keyword: "analysis", Weight: 7},
			{Keyword: "mock", Weight: 6},
			{Keyword: "demo", Weight: 5},
			{Keyword: "sample", Weight: 4},
		},
		Topics:            []string{"general", "demo", "testing"},
		Genre:             "general",
		TargetAudience:    []string{"general"},
		DurationEstimate:  "0:12",
		IsSafe:            true,
		NoOfPersonInVideo: 0,
	}
	if transcript != nil {
		result.Transcription = transcript
	}
	result.Normalize()
	return result
}
