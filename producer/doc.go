// Package producer is the boundary between whatever generates source files
// and the artifact store.
//
// A Generator turns a prompt into text. LLMGenerator implements it over a
// flowgraph llm.Client and picks a model for the kind of work through the
// llmkit tier selector. ParseFiles reads the file-block format generators are
// asked to emit, and Builder turns the parsed files plus the current target
// tree into an artifact.Bundle with one unified diff per file.
//
// PromptLoader renders the system and feature prompts. Files named
// <name>.txt in its search directories override the built-in ones.
//
// Example usage:
//
//	loader := producer.NewPromptLoader(filepath.Join(projectDir, "prompts"))
//	system, err := loader.SystemPrompt()
//	prompt, err := loader.FeaturePrompt(producer.PromptData{Feature: "login", Request: req})
//
//	gen := producer.NewClaudeGenerator(producer.KindGenerate, projectDir,
//	    producer.WithSystemPrompt(system))
//	text, err := gen.Generate(ctx, prompt)
//	files, err := producer.ParseFiles(text)
//
//	b := producer.NewBuilder(projectDir)
//	bundle, err := b.Build(files, map[string]any{"source": "figma"})
//	err = b.Stage(session, "login", bundle)
package producer
