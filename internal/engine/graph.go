package engine

import (
	"github.com/mautops/jobflow-gin/internal/model"
)

// WouldCreateAutomaticCycle 判断在既有边集上新增 candidate 后,
// 是否会形成仅经自动边可达的环
// 采用显式栈的迭代 DFS,图由阶段 ID 的邻接表表示,遍历有界
func WouldCreateAutomaticCycle(existing []*model.TransitionModel, candidate *model.TransitionModel) bool {
	if !candidate.Automatic {
		return false
	}
	if candidate.FromStageID == candidate.ToStageID {
		return true
	}

	// 自动边邻接表,含候选边
	adjacency := make(map[string][]string)
	for _, transition := range existing {
		if !transition.Automatic {
			continue
		}
		adjacency[transition.FromStageID] = append(adjacency[transition.FromStageID], transition.ToStageID)
	}
	adjacency[candidate.FromStageID] = append(adjacency[candidate.FromStageID], candidate.ToStageID)

	// 候选边闭合环,当且仅当 candidate.To 沿自动边可回到 candidate.From
	visited := make(map[string]bool)
	stack := []string{candidate.ToStageID}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current == candidate.FromStageID {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		stack = append(stack, adjacency[current]...)
	}

	return false
}
