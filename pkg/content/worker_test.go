package content_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/mediaforge/contentpipe/ent/generation"
	"github.com/mediaforge/contentpipe/pkg/config"
	"github.com/mediaforge/contentpipe/pkg/content"
	"github.com/mediaforge/contentpipe/pkg/llm"
	"github.com/mediaforge/contentpipe/pkg/queue"
	"github.com/mediaforge/contentpipe/pkg/store"
	pb "github.com/mediaforge/contentpipe/proto"

	testdb "github.com/mediaforge/contentpipe/test/database"
)

// fakeLLMServer is a scripted ContentService used to drive the Content
// Worker's outline/section-generation calls deterministically.
type fakeLLMServer struct {
	pb.UnimplementedContentServiceServer
	outlineMarkdown   string
	seoTitle          string
	sectionCallCount  int
	sectionTextByType map[string]string

	// translateStarted/translateGate let a test pause the worker mid-Translate
	// call to deterministically race an external status change against the
	// worker's next checkpoint, instead of sleeping and hoping.
	translateStarted chan struct{}
	translateGate    chan struct{}
}

func (f *fakeLLMServer) GenerateOutline(ctx context.Context, req *pb.OutlineRequest) (*pb.OutlineResponse, error) {
	return &pb.OutlineResponse{OutlineMarkdown: f.outlineMarkdown, SeoTitle: f.seoTitle}, nil
}

func (f *fakeLLMServer) GenerateSectionContent(ctx context.Context, req *pb.SectionContentRequest) (*pb.SectionContentResponse, error) {
	f.sectionCallCount++
	text := f.sectionTextByType[req.GetSectionType()]
	if text == "" {
		text = "generated content for " + req.GetSectionTitle()
	}
	return &pb.SectionContentResponse{TextContent: text}, nil
}

func (f *fakeLLMServer) Translate(ctx context.Context, req *pb.TranslateRequest) (*pb.TranslateResponse, error) {
	if f.translateStarted != nil {
		close(f.translateStarted)
		<-f.translateGate
	}
	return &pb.TranslateResponse{TranslatedText: "translated: " + req.GetText()}, nil
}

func (f *fakeLLMServer) SuggestTitles(ctx context.Context, req *pb.SuggestTitlesRequest) (*pb.SuggestTitlesResponse, error) {
	return &pb.SuggestTitlesResponse{}, nil
}

func startFakeLLM(t *testing.T, fake *fakeLLMServer) *llm.Client {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	pb.RegisterContentServiceServer(server, fake)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	client, err := llm.NewClient(lis.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestStoreAndClaimable(t *testing.T, language string, targetMinutes int) (*store.Store, string) {
	t.Helper()
	dbClient := testdb.NewTestClient(t)
	s := store.New(dbClient.Client)

	topic, err := s.CreateOrGetTopic(context.Background(), "The Rise of Widgets", language, "")
	require.NoError(t, err)

	gen, err := s.CreateGeneration(context.Background(), store.NewGenerationParams{
		TopicID:               topic.ID,
		TaskType:               generation.TaskTypeFromTopic,
		Language:              language,
		Priority:              2,
		TargetDurationMinutes: targetMinutes,
	})
	require.NoError(t, err)
	return s, gen.ID
}

func TestExecutorProcessesFromTopicToContentReady(t *testing.T) {
	s, genID := newTestStoreAndClaimable(t, "english", 10)

	fake := &fakeLLMServer{
		outlineMarkdown: "# Intro\n\n# Section A\n- point a1\n\n# Outro\n",
		seoTitle:        "A Great Title",
	}
	llmClient := startFakeLLM(t, fake)

	executor := content.NewExecutor(s, llmClient, config.DefaultCPMConfig(), 2)

	err := executor.PollAndExecute(context.Background())
	require.NoError(t, err)

	gen, err := s.GetGeneration(context.Background(), genID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusContentReady, gen.Status)
	require.NotNil(t, gen.SeoTitle)
	assert.Equal(t, "A Great Title", *gen.SeoTitle)
	require.NotNil(t, gen.ScriptName)
	require.NotNil(t, gen.TargetChars)

	chunks, err := s.AllChunksOrdered(context.Background(), genID)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
}

func TestExecutorTranslatesTopicTitleWhenLanguagesDiffer(t *testing.T) {
	dbClient := testdb.NewTestClient(t)
	s := store.New(dbClient.Client)

	topic, err := s.CreateOrGetTopic(context.Background(), "A Universal Story", "english", "")
	require.NoError(t, err)
	gen, err := s.CreateGeneration(context.Background(), store.NewGenerationParams{
		TopicID: topic.ID, TaskType: generation.TaskTypeFromTopic, Language: "vietnamese",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)

	fake := &fakeLLMServer{outlineMarkdown: "# Intro\n\n# Section A\n- point a1\n"}
	llmClient := startFakeLLM(t, fake)
	executor := content.NewExecutor(s, llmClient, config.DefaultCPMConfig(), 2)

	require.NoError(t, executor.PollAndExecute(context.Background()))

	reloadedTopic, err := s.GetTopic(context.Background(), topic.ID)
	require.NoError(t, err)
	require.NotNil(t, reloadedTopic.TranslatedTitle)
	assert.Equal(t, "translated: A Universal Story", *reloadedTopic.TranslatedTitle)

	reloadedGen, err := s.GetGeneration(context.Background(), gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusContentReady, reloadedGen.Status)
}

func TestExecutorNoTasksAvailableWhenQueueEmpty(t *testing.T) {
	dbClient := testdb.NewTestClient(t)
	s := store.New(dbClient.Client)
	fake := &fakeLLMServer{}
	llmClient := startFakeLLM(t, fake)
	executor := content.NewExecutor(s, llmClient, config.DefaultCPMConfig(), 2)

	err := executor.PollAndExecute(context.Background())
	assert.ErrorIs(t, err, queue.ErrNoTasksAvailable)
}

func TestExecutorMarksContentFailedOnOutlineError(t *testing.T) {
	s, genID := newTestStoreAndClaimable(t, "english", 10)

	fake := &fakeLLMServer{outlineMarkdown: ""} // flattens to zero items -> error
	llmClient := startFakeLLM(t, fake)
	executor := content.NewExecutor(s, llmClient, config.DefaultCPMConfig(), 2)

	require.NoError(t, executor.PollAndExecute(context.Background()))

	gen, err := s.GetGeneration(context.Background(), genID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusContentFailed, gen.Status)
	require.NotNil(t, gen.ErrorStage)
	assert.Equal(t, "content_worker", *gen.ErrorStage)
}

func TestExecutorProcessesRewriteScript(t *testing.T) {
	dbClient := testdb.NewTestClient(t)
	s := store.New(dbClient.Client)

	topic, err := s.CreateOrGetTopic(context.Background(), "Rewrite Source Topic", "english", "")
	require.NoError(t, err)
	gen, err := s.CreateGeneration(context.Background(), store.NewGenerationParams{
		TopicID: topic.ID, TaskType: generation.TaskTypeRewriteScript, Language: "english",
		Priority: 2, TargetDurationMinutes: 5, SourceScript: "an existing script to rewrite",
	})
	require.NoError(t, err)

	fake := &fakeLLMServer{
		outlineMarkdown: "# Derived Outline",
		sectionTextByType: map[string]string{
			"rewrite_chunk": "a short rewritten script that fits in one piece",
		},
	}
	llmClient := startFakeLLM(t, fake)
	executor := content.NewExecutor(s, llmClient, config.DefaultCPMConfig(), 2)

	require.NoError(t, executor.PollAndExecute(context.Background()))

	reloaded, err := s.GetGeneration(context.Background(), gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusContentReady, reloaded.Status)
	require.NotNil(t, reloaded.DerivedOutline)
	assert.Equal(t, "# Derived Outline", *reloaded.DerivedOutline)

	chunks, err := s.AllChunksOrdered(context.Background(), gen.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short rewritten script that fits in one piece", chunks[0].TextContent)
}

func TestExecutorAbortsWhenResetMidProcessing(t *testing.T) {
	dbClient := testdb.NewTestClient(t)
	s := store.New(dbClient.Client)

	topic, err := s.CreateOrGetTopic(context.Background(), "Needs Translation", "english", "")
	require.NoError(t, err)
	gen, err := s.CreateGeneration(context.Background(), store.NewGenerationParams{
		TopicID: topic.ID, TaskType: generation.TaskTypeFromTopic, Language: "vietnamese",
		Priority: 2, TargetDurationMinutes: 10,
	})
	require.NoError(t, err)

	fake := &fakeLLMServer{
		outlineMarkdown:  "# Intro\n\n# Section A\n- point a1\n",
		translateStarted: make(chan struct{}),
		translateGate:    make(chan struct{}),
	}
	llmClient := startFakeLLM(t, fake)
	executor := content.NewExecutor(s, llmClient, config.DefaultCPMConfig(), 2)

	done := make(chan error, 1)
	go func() { done <- executor.PollAndExecute(context.Background()) }()

	select {
	case <-fake.translateStarted:
	case <-done:
		t.Fatal("worker finished before reaching the translate call")
	}

	// An operator resets the generation while the worker is blocked inside
	// the translate RPC, landing status back at pending before the worker's
	// next checkpoint re-reads it.
	require.NoError(t, s.ResetGeneration(context.Background(), gen.ID))
	close(fake.translateGate)

	require.NoError(t, <-done)

	reloaded, err := s.GetGeneration(context.Background(), gen.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusPending, reloaded.Status)
}
