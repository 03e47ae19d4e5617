// Package catalog holds the static model and skill tables used to validate
// build requests and to decorate tool events for display.
package catalog

// Model is one selectable foundation model ("soul").
type Model struct {
	ID   string
	Name string
	Icon string
}

// Skill is one attachable capability card.
type Skill struct {
	ID     string
	Name   string
	Icon   string
	Action string
}

// Lookup resolves display metadata by skill identifier. The conversation
// reducer consumes this interface; it never depends on the tables directly.
type Lookup interface {
	SkillByID(id string) (Skill, bool)
}

var models = []Model{
	{ID: "nemotron", Name: "Nemotron (NVIDIA)", Icon: "🟢"},
	{ID: "llama", Name: "Llama 3.3 (Meta)", Icon: "🦙"},
	{ID: "deepseek", Name: "DeepSeek R1 (DeepSeek)", Icon: "🐳"},
	{ID: "claude", Name: "Claude (Anthropic)", Icon: "✴️"},
}

var skills = []Skill{
	{ID: "cublas", Name: "cuBLAS", Icon: "📐", Action: "linear algebra"},
	{ID: "cuopt", Name: "cuOpt", Icon: "🧭", Action: "optimization"},
	{ID: "cuml", Name: "cuML", Icon: "📈", Action: "machine learning"},
	{ID: "cudnn", Name: "cuDNN", Icon: "🧠", Action: "neural network primitives"},
	{ID: "tensorrt", Name: "TensorRT", Icon: "⚡", Action: "inference"},
	{ID: "cugraph", Name: "cuGraph", Icon: "🕸️", Action: "graph analytics"},
	{ID: "websearch", Name: "Web Search", Icon: "🌐", Action: "search"},
	{ID: "codeinterpreter", Name: "Code Interpreter", Icon: "💻", Action: "execute"},
	{ID: "rag", Name: "RAG", Icon: "📚", Action: "retrieve"},
	{ID: "vision", Name: "Vision", Icon: "👁️", Action: "analyze image"},
	{ID: "speech", Name: "Speech", Icon: "🎙️", Action: "transcribe"},
	{ID: "fileio", Name: "File I/O", Icon: "📁", Action: "file access"},
	{ID: "api", Name: "API Access", Icon: "🔧", Action: "call api"},
	{ID: "database", Name: "Database", Icon: "🗄️", Action: "query"},
}

var (
	modelIndex = make(map[string]Model, len(models))
	skillIndex = make(map[string]Skill, len(skills))
)

func init() {
	for _, m := range models {
		modelIndex[m.ID] = m
	}
	for _, s := range skills {
		skillIndex[s.ID] = s
	}
}

// Models returns all selectable models in display order.
func Models() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// Skills returns all attachable skills in display order.
func Skills() []Skill {
	out := make([]Skill, len(skills))
	copy(out, skills)
	return out
}

// ModelByID looks up a model by identifier.
func ModelByID(id string) (Model, bool) {
	m, ok := modelIndex[id]
	return m, ok
}

// SkillByID looks up a skill by identifier.
func SkillByID(id string) (Skill, bool) {
	s, ok := skillIndex[id]
	return s, ok
}

// Static is a Lookup backed by the built-in tables.
type Static struct{}

func (Static) SkillByID(id string) (Skill, bool) {
	return SkillByID(id)
}
