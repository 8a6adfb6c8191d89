package orchestrator

import (
	"fmt"
	"strings"

	"foreman/internal/state"
)

const plannerSystemPrompt = `You are a planner that breaks down a complex task into high-level steps and expands them into detailed hierarchical plans.`

func plannerUserPrompt(input string) string {
	return fmt.Sprintf(`For the following task:
%s

Create a list of 1-7 high-level sequential steps to accomplish this task.
Each step should be a clear, actionable item that leads towards the final goal.
For each high-level step, create a detailed expansion with:
1. A clear description of the step
2. 1-4 substeps that break down how to accomplish this step, depending on the complexity of the step.`, input)
}

const replannerSystemPrompt = `For the given objective, come up with a simple step by step plan.
This plan should involve individual tasks, that if executed correctly will yield the correct answer. Do not add any superfluous steps.
The result of the final step should be the final answer. Make sure that each step has all the information needed - do not skip steps.`

func replannerUserPrompt(st *state.State) string {
	var plan strings.Builder
	for i, step := range st.Plan {
		fmt.Fprintf(&plan, "%d. %s\n", i+1, step.Description)
		for _, sub := range step.Substeps {
			fmt.Fprintf(&plan, "   - %s\n", sub)
		}
	}

	var past strings.Builder
	for _, ps := range st.PastSteps {
		fmt.Fprintf(&past, "- %s: %s\n", ps.Step, ps.Result)
	}

	return fmt.Sprintf(`Your objective was this:
%s

Your original plan was this:
%s
You have currently done the follow steps:
%s
Update your plan accordingly. If no more steps are needed and you can return to the user, then respond with that and use the 'response' action.
Otherwise, fill out the plan.
Only add steps to the plan that still NEED to be done. Do not return previously done steps as part of the plan.`,
		st.Input, plan.String(), past.String())
}

// supervisorSystemPrompt lists the routable workers. The worker set is
// dynamic, so the prompt is assembled from the registered adapters.
func supervisorSystemPrompt(workers []string) string {
	descriptions := map[string]string{
		"fs_worker":      "Handles file operations, reading, writing, and file management",
		"shell_worker":   "Executes shell commands and scripts",
		"browser_worker": "Handles web browsing, searching, and information retrieval",
		"kb_worker":      "Retrieves information from the knowledge base using RAG (Retrieval-Augmented Generation)",
		AskUser:          "Requests input or information from the human user",
	}

	var sb strings.Builder
	sb.WriteString("You are a supervisor tasked with routing tasks to specialized workers.\nAvailable workers:\n")
	for _, w := range workers {
		desc := descriptions[w]
		if desc == "" {
			desc = "Specialized worker"
		}
		fmt.Fprintf(&sb, "- %s: %s\n", w, desc)
	}
	sb.WriteString("Given the task description and substeps, select the most appropriate worker.\nIf the task is complete, respond with FINISH.")
	return sb.String()
}

func supervisorUserPrompt(workers []string, step state.Step) string {
	return fmt.Sprintf(`Based on this information, which worker should handle this task?
Respond with one of: %s or FINISH if complete.
Provide detailed instructions for the selected worker.
Task: %s
Substeps: %s`,
		strings.Join(workers, ", "), step.Description, strings.Join(step.Substeps, "\n"))
}
