package workflow

import "adforge/internal/domain"

// scoreEpsilon は 5 つの値の和で生じる浮動小数点の丸め誤差 (数 ulp) だけを吸収します。
// 0.7999999995 のように実際に閾値を下回る平均は受理しません。
const scoreEpsilon = 1e-12

// Accept は 5 軸の単純平均を返し、閾値以上 (>=) なら受理とします。
func Accept(scores domain.Scores, threshold float64) (float64, bool) {
	mean := scores.Mean()
	return mean, mean+scoreEpsilon >= threshold
}
