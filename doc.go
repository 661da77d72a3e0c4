/*
Package sequent is a headless sequencing and navigation engine for structured
learning content.

It compiles a course manifest into an activity tree, then mediates every
navigation request a learner makes against the tree's control modes and
sequencing rules, rolling progress and scores up from leaves to clusters
after each change. The engine decides what the learner may do and which
activity to deliver next; your application ("Host") renders content and
reports progress back.

# Concept

A course is a tree: clusters group activities, leaves reference launchable
content. Each node can declare control modes (is free choice allowed? is
linear flow allowed?), rule sets evaluated before entry and after progress,
an objective with an optional mapping into a session-wide table, and a rollup
configuration weighting its contribution to its parent. The engine is
deterministic: the same tree, state and request always resolve the same way.

# Key Features

  - Deterministic Sequencing: denials carry machine-readable codes, never
    silent fallbacks.
  - Hexagonal Architecture: the runtime core is decoupled from adapters
    (manifest loading, snapshot storage, HTTP).
  - State Persistence: sessions snapshot to pluggable stores for suspend and
    resume across processes.
  - Observability: lifecycle hooks stream navigation, delivery and rollup
    events to loggers or metrics.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/openlms/sequent"
		"github.com/openlms/sequent/pkg/domain"
		"github.com/openlms/sequent/pkg/dsl"
	)

	func main() {
		ctx := context.Background()

		manifest := dsl.New("course").
			Add(
				dsl.NewItem("intro").Resource("intro.html"),
				dsl.NewItem("quiz").Resource("quiz.html"),
			).
			Build()

		eng, err := sequent.New(ctx, manifest)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := eng.Initialize(ctx); err != nil {
			log.Fatal(err)
		}

		// Main loop: Navigate -> render target -> report progress.
		res, _ := eng.Navigate(ctx, domain.NavStart, "")
		for res.Success && res.Target != nil {
			log.Println("deliver:", res.Target.ID)

			completed := true
			eng.UpdateProgress(ctx, res.Target.ID, domain.ProgressUpdate{Completed: &completed})

			res, _ = eng.Navigate(ctx, domain.NavContinue, "")
		}

		eng.Terminate(ctx)
	}
*/
package sequent
