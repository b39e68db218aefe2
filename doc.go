// Package stepchain orchestrates fixed, linear pipelines of AI agent calls.
//
// A pipeline is a chain of steps. Each step builds its outbound payload from
// the run's execution context using a declarative template, invokes an
// external collaborator (or transforms the context in place), and records
// its result into a write-once slot. Any failure funnels into a single
// failure terminal that records which step failed; pipelines can opt into
// failure notifications.
//
// Three pipelines ship in the catalog:
//
//   - bizdev: requirement analysis through user stories, competitive
//     analysis, PRD, architecture, implementation and code review.
//   - cfn-analysis: CloudFormation stack failure parsing, architect
//     analysis, and notification delivery.
//   - materials: property target setting, materials inverse design,
//     candidate ranking, experiment planning and resource estimation,
//     aggregated into a final report.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/stepchain/stepchain/cmd/stepchain@latest
//
// Point it at a configuration describing your collaborator endpoints:
//
//	collaborators:
//	  product-manager:
//	    type: http
//	    url: http://localhost:9001/invoke
//	pipelines:
//	  bizdev:
//	    timeout: 24h
//
// Start the trigger API:
//
//	stepchain serve --config config.yaml
//
// Or execute one run directly:
//
//	stepchain run --pipeline bizdev \
//	  --input '{"requirement": "manage household budget", "user_id": "user123"}'
//
// The packages underneath are usable as a library: pipeline holds the
// execution engine and definition builder, catalog the built-in pipelines,
// collaborator and notify the outbound clients, runstore the run archive,
// and server the HTTP trigger API.
package stepchain
