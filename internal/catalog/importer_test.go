package catalog_test

import (
	"strings"
	"testing"

	"tempoline/internal/catalog"
)

func TestImportEngagementsCreateThenUpdate(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.Store.ImportEngagements(env.Ctx, []catalog.EngagementRecord{
		{EngagementCode: "ENG-1", EngagementName: "Audit"},
		{EngagementCode: "ENG-2", EngagementName: "Tax"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Created) != 2 || len(first.Updated) != 0 || len(first.Skipped) != 0 {
		t.Fatalf("first batch: %+v", first)
	}
	// created entries come back in input order, ids assigned
	if first.Created[0].EngagementCode != "ENG-1" || first.Created[1].EngagementCode != "ENG-2" {
		t.Fatalf("created order: %+v", first.Created)
	}
	if first.Created[0].ID == 0 || first.Created[1].ID == 0 {
		t.Fatalf("created entries missing ids: %+v", first.Created)
	}
	if first.BatchID == "" {
		t.Fatalf("missing batch id")
	}
	second, err := env.Store.ImportEngagements(env.Ctx, []catalog.EngagementRecord{
		{EngagementCode: "eng-1", EngagementName: "Audit 2026"},
		{EngagementCode: "ENG-3", EngagementName: "Advisory"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Created) != 1 || len(second.Updated) != 1 || len(second.Skipped) != 0 {
		t.Fatalf("second batch: %+v", second)
	}
	// the updated bucket carries the refreshed entry under its stored code
	if second.Updated[0].ID != first.Created[0].ID || second.Updated[0].EngagementName != "Audit 2026" {
		t.Fatalf("updated entry: %+v", second.Updated[0])
	}
	if second.Created[0].EngagementCode != "ENG-3" {
		t.Fatalf("created entry: %+v", second.Created[0])
	}
	if second.BatchID == first.BatchID {
		t.Fatalf("batch ids should differ")
	}
	all, err := env.Store.ListEngagements(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
}

func TestImportEngagementsSkipsMissingFields(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.Store.ImportEngagements(env.Ctx, []catalog.EngagementRecord{
		{EngagementCode: "", EngagementName: "Nameless"},
		{EngagementCode: "ENG-1", EngagementName: "   "},
		{EngagementCode: "ENG-2", EngagementName: "Kept"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 1 || len(result.Updated) != 0 || len(result.Skipped) != 2 {
		t.Fatalf("result: %+v", result)
	}
	if result.Created[0].EngagementCode != "ENG-2" {
		t.Fatalf("created entry: %+v", result.Created[0])
	}
	if !strings.Contains(result.Skipped[0].Reason, "engagement_code") {
		t.Fatalf("first skip reason: %q", result.Skipped[0].Reason)
	}
	if !strings.Contains(result.Skipped[1].Reason, "engagement_name") {
		t.Fatalf("second skip reason: %q", result.Skipped[1].Reason)
	}
}

func TestImportTasksAccounting(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.Store.ImportTasks(env.Ctx, []catalog.TaskRecord{
		{Macroprocess: "Close", Process: "Reconcile", Label: "Bank rec"},
		{Macroprocess: "Close", Process: "Reconcile", Label: "bank rec"},
		{Macroprocess: "Close", Process: "", Label: "Orphan"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 1 || len(result.Updated) != 1 || len(result.Skipped) != 1 {
		t.Fatalf("result: %+v", result)
	}
	// the duplicate record resolves to the entry created moments before
	if result.Updated[0].ID != result.Created[0].ID {
		t.Fatalf("updated should match created entry: %+v vs %+v", result.Updated[0], result.Created[0])
	}
	if result.Created[0].Label != "Bank rec" {
		t.Fatalf("created entry: %+v", result.Created[0])
	}
	if !strings.Contains(result.Skipped[0].Reason, "process") {
		t.Fatalf("skip reason: %q", result.Skipped[0].Reason)
	}
}

func TestImportDeliverablesInvalidPeriodicity(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.Store.ImportDeliverables(env.Ctx, []catalog.DeliverableRecord{
		{Label: "Board pack", Periodicity: "fortnightly"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 0 || len(result.Updated) != 0 || len(result.Skipped) != 1 {
		t.Fatalf("result: %+v", result)
	}
	if !strings.Contains(result.Skipped[0].Reason, "fortnightly") {
		t.Fatalf("skip reason should name the value: %q", result.Skipped[0].Reason)
	}
	all, err := env.Store.ListDeliverables(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("skipped record leaked into the catalog: %+v", all)
	}
}

func TestImportDeliverablesEmptyPeriodicity(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.Store.ImportDeliverables(env.Ctx, []catalog.DeliverableRecord{
		{Label: "Memo"},
		{Label: "Memo", Periodicity: "not_applicable"},
	})
	if err != nil {
		t.Fatal(err)
	}
	// empty folds to not_applicable, so the second record updates the first
	if len(result.Created) != 1 || len(result.Updated) != 1 {
		t.Fatalf("result: %+v", result)
	}
	if result.Updated[0].ID != result.Created[0].ID {
		t.Fatalf("buckets disagree: %+v vs %+v", result.Updated[0], result.Created[0])
	}
}

func TestImportBucketsPreserveInputOrder(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Store.ImportEngagements(env.Ctx, []catalog.EngagementRecord{
		{EngagementCode: "OLD-1", EngagementName: "Old one"},
		{EngagementCode: "OLD-2", EngagementName: "Old two"},
	}); err != nil {
		t.Fatal(err)
	}
	result, err := env.Store.ImportEngagements(env.Ctx, []catalog.EngagementRecord{
		{EngagementCode: "NEW-B", EngagementName: "New b"},
		{EngagementCode: "old-2", EngagementName: "Old two again"},
		{EngagementCode: "NEW-A", EngagementName: "New a"},
		{EngagementCode: "old-1", EngagementName: "Old one again"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Created) != 2 || result.Created[0].EngagementCode != "NEW-B" || result.Created[1].EngagementCode != "NEW-A" {
		t.Fatalf("created bucket order: %+v", result.Created)
	}
	if len(result.Updated) != 2 || result.Updated[0].EngagementCode != "OLD-2" || result.Updated[1].EngagementCode != "OLD-1" {
		t.Fatalf("updated bucket order: %+v", result.Updated)
	}
}
