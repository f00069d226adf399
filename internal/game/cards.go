package game

import (
	"math/rand"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/tower-game/internal/errors"
)

// 卡牌类型池，随机发牌时等概率抽取
var cardTypes = []ActionType{ActionAttack, ActionDefend, ActionBuild}

// 卡牌的展示名称与说明，同类型卡牌在机制上完全相同
var cardNames = map[ActionType]string{
	ActionAttack: "攻击",
	ActionDefend: "防御",
	ActionBuild:  "建造",
}

var cardDescriptions = map[ActionType]string{
	ActionAttack: "对手塔高度-1（被护盾挡下则无效）",
	ActionDefend: "激活护盾，挡下本回合一次攻击",
	ActionBuild:  "己方塔高度+1",
}

// newCard 生成一张指定类型的卡牌，ID全局唯一且不复用
func newCard(t ActionType) *Card {
	return &Card{
		ID:          uuid.New().String(),
		Type:        t,
		Name:        cardNames[t],
		Description: cardDescriptions[t],
	}
}

// dealInitialHand 发初始手牌：固定3张，同一类型最多出现2次
func dealInitialHand(rng *rand.Rand, size int) Hand {
	if size <= 0 {
		size = 3
	}

	hand := make(Hand, 0, size)
	typeCount := make(map[ActionType]int, len(cardTypes))

	for len(hand) < size {
		t := cardTypes[rng.Intn(len(cardTypes))]
		// 重抽直到满足"同类型不超过2张"的约束
		if typeCount[t] >= 2 {
			continue
		}
		typeCount[t]++
		hand = append(hand, newCard(t))
	}

	return hand
}

// drawCard 补牌：类型在三种动作中等概率抽取，不再受重复约束
func drawCard(rng *rand.Rand) *Card {
	return newCard(cardTypes[rng.Intn(len(cardTypes))])
}

// validateAndConsume 校验卡牌并消耗：卡牌必须在手牌中且类型与动作一致；
// 成功后移除该卡并补入一张新卡，失败则手牌保持不变
func (r *Room) validateAndConsume(rng *rand.Rand, playerID, cardID string, action ActionType) error {
	hand, ok := r.Hands[playerID]
	if !ok {
		return apperrors.Newf(apperrors.ErrCardNotFound, "玩家 %s 没有手牌", playerID)
	}

	for i, card := range hand {
		if card.ID != cardID {
			continue
		}
		if card.Type != action {
			return apperrors.Newf(apperrors.ErrCardTypeMismatch,
				"卡牌类型 %s 与动作 %s 不匹配", card.Type, action)
		}
		// 移除旧卡并补入新卡，手牌数量保持不变
		hand = append(hand[:i], hand[i+1:]...)
		hand = append(hand, drawCard(rng))
		r.Hands[playerID] = hand
		return nil
	}

	return apperrors.Newf(apperrors.ErrCardNotFound, "卡牌 %s 不在手牌中", cardID)
}

// handSnapshot 生成手牌的拷贝，用于推送给持有者
func (r *Room) handSnapshot(playerID string) Hand {
	hand, ok := r.Hands[playerID]
	if !ok {
		return nil
	}
	clone := make(Hand, len(hand))
	for i, card := range hand {
		cp := *card
		clone[i] = &cp
	}
	return clone
}
