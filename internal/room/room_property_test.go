package room

import (
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/yourboymarti/poker-everest/internal/model"
)

// TestRoomStateInvariantsProperty drives a room through arbitrary command
// sequences and checks the invariants that must hold regardless of order:
// at most one host, at most one active round, and strictly increasing
// delta versions.
func TestRoomStateInvariantsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	// A small closed command alphabet; indices are mapped onto live
	// participant and task ids inside the runner.
	type cmd struct {
		op   int
		arg  int
		vote string
	}
	cmdGen := gopter.CombineGens(
		gen.IntRange(0, 7),
		gen.IntRange(0, 5),
		gen.OneConstOf("1", "5", "8", "10", "?", "☕"),
	).Map(func(vals []interface{}) cmd {
		return cmd{op: vals[0].(int), arg: vals[1].(int), vote: vals[2].(string)}
	})

	properties.Property("arbitrary command sequences never violate room invariants", prop.ForAll(
		func(cmds []cmd) bool {
			log := &deltaLog{}
			r := newRoom("PROP1", "prop", "host-token", Config{
				MaxParticipants: 6,
				Deck:            model.DaysDeck,
			}.withDefaults(), log)
			defer r.close()

			hostID, _, err := r.Join("host", "host-token")
			if err != nil {
				return false
			}
			ids := []string{hostID}
			var taskIDs []string

			for _, c := range cmds {
				pid := ids[c.arg%len(ids)]
				switch c.op {
				case 0:
					if id, _, err := r.Join(fmt.Sprintf("p%d", len(ids)), ""); err == nil {
						ids = append(ids, id)
					}
				case 1:
					if task, err := r.AddTask(pid, fmt.Sprintf("task %d", len(taskIDs))); err == nil {
						taskIDs = append(taskIDs, task.ID)
					}
				case 2:
					if len(taskIDs) > 0 {
						r.DeleteTask(pid, taskIDs[c.arg%len(taskIDs)])
					}
				case 3:
					if len(taskIDs) > 0 {
						r.UndoDelete(pid, taskIDs[c.arg%len(taskIDs)])
					}
				case 4:
					if len(taskIDs) > 0 {
						r.StartRound(pid, taskIDs[c.arg%len(taskIDs)], 0)
					}
				case 5:
					r.SubmitVote(pid, c.vote)
				case 6:
					r.RevealRound(pid)
				case 7:
					r.EndRound(pid)
				}

				snap := r.Snapshot()
				hosts := 0
				for _, p := range snap.Participants {
					if p.Role == model.RoleHost {
						hosts++
					}
				}
				if hosts > 1 {
					return false
				}
				active := 0
				for _, task := range snap.Tasks {
					if task.State == model.TaskActive {
						active++
					}
				}
				if active > 1 {
					return false
				}
			}

			var last uint64
			for _, d := range log.all() {
				if d.Version <= last {
					return false
				}
				last = d.Version
			}
			return true
		},
		gen.SliceOf(cmdGen),
	))

	properties.TestingRun(t)
}

// TestRevealAverageProperty checks that for any mix of deck votes the
// revealed average is the arithmetic mean of the numeric subset rounded to
// one decimal, and nil when no numeric votes were cast.
func TestRevealAverageProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("revealed average is the rounded mean of numeric votes", prop.ForAll(
		func(votes []string) bool {
			if len(votes) == 0 {
				return true
			}
			if len(votes) > 5 {
				votes = votes[:5]
			}

			log := &deltaLog{}
			r := newRoom("PROP2", "prop", "host-token", Config{
				MaxParticipants: 6,
				Deck:            model.DaysDeck,
			}.withDefaults(), log)
			defer r.close()

			hostID, _, err := r.Join("host", "host-token")
			if err != nil {
				return false
			}
			voters := []string{hostID}
			for i := 1; i < len(votes); i++ {
				id, _, err := r.Join(fmt.Sprintf("p%d", i), "")
				if err != nil {
					return false
				}
				voters = append(voters, id)
			}

			task, err := r.AddTask(hostID, "estimate")
			if err != nil {
				return false
			}
			if err := r.StartRound(hostID, task.ID, 0); err != nil {
				return false
			}
			for i, v := range votes {
				if err := r.SubmitVote(voters[i], v); err != nil {
					return false
				}
			}
			if err := r.RevealRound(hostID); err != nil {
				return false
			}

			revealed := log.byType(model.DeltaRoundRevealed)
			if len(revealed) != 1 {
				return false
			}
			payload := revealed[0].Payload.(model.RoundRevealedPayload)

			var sum float64
			var n int
			for _, v := range votes {
				if f, ok := model.NumericValue(v); ok {
					sum += f
					n++
				}
			}
			if n == 0 {
				return payload.Average == nil
			}
			if payload.Average == nil {
				return false
			}
			want := math.Round(sum/float64(n)*10) / 10
			return math.Abs(*payload.Average-want) < 1e-9
		},
		gen.SliceOf(gen.OneConstOf("1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "?", "☕")),
	))

	properties.TestingRun(t)
}
