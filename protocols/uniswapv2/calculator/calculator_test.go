package uniswapv2

import (
	"math/big"
	"math/rand"
	"reflect"
	"testing"

	uniswapv2 "github.com/defistate/ammquote-go/protocols/uniswapv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBigIntFromString creates a big.Int from a decimal string larger than an int64.
func newBigIntFromString(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("failed to set string for big.Int")
	}
	return n
}

func pow2(n uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), n)
}

func usdcWethPool(feeBps uint16) uniswapv2.Pool {
	return uniswapv2.Pool{
		ID:       1,
		Token0:   0,                                           // USDC
		Token1:   1,                                           // WETH
		Reserve0: big.NewInt(100_000_000),                     // 100 USDC
		Reserve1: newBigIntFromString("50000000000000000000"), // 50 WETH
		FeeBps:   feeBps,
	}
}

func TestQuoteOutputForInput(t *testing.T) {
	testCases := []struct {
		name       string
		amountIn   *big.Int
		reserveIn  *big.Int
		reserveOut *big.Int
		feeBps     uint16
		expected   *big.Int
		expectErr  error
	}{
		{
			name:       "Reference swap",
			amountIn:   big.NewInt(10_000),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     30,
			expected:   big.NewInt(19743),
		},
		{
			name:       "Zero fee",
			amountIn:   big.NewInt(1_000_000),
			reserveIn:  big.NewInt(1_000_000_000),
			reserveOut: big.NewInt(1_000_000_000),
			feeBps:     0,
			expected:   big.NewInt(999000),
		},
		{
			name:       "Zero amount",
			amountIn:   big.NewInt(0),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     30,
			expected:   big.NewInt(0),
		},
		{
			name:       "Zero reserveIn",
			amountIn:   big.NewInt(10_000),
			reserveIn:  big.NewInt(0),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     30,
			expected:   big.NewInt(0),
		},
		{
			name:       "Zero reserveOut",
			amountIn:   big.NewInt(10_000),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(0),
			feeBps:     30,
			expected:   big.NewInt(0),
		},
		{
			name:       "Nil amount",
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			expectErr:  ErrNilAmount,
		},
		{
			name:       "Negative amount",
			amountIn:   big.NewInt(-1),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			expectErr:  ErrInvalidAmount,
		},
		{
			name:       "Nil reserve",
			amountIn:   big.NewInt(1),
			reserveOut: big.NewInt(2_000_000),
			expectErr:  ErrNilAmount,
		},
		{
			name:       "Fee of 100%",
			amountIn:   big.NewInt(10_000),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     10000,
			expectErr:  ErrInvalidFee,
		},
		{
			name:       "Input above 256 bits",
			amountIn:   pow2(256),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     30,
			expectErr:  ErrOverflow,
		},
		{
			name:       "Intermediate product overflows",
			amountIn:   pow2(200),
			reserveIn:  pow2(100),
			reserveOut: pow2(100),
			feeBps:     30,
			expectErr:  ErrOverflow,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := QuoteOutputForInput(tc.amountIn, tc.reserveIn, tc.reserveOut, tc.feeBps)
			if tc.expectErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Zero(t, tc.expected.Cmp(out), "Expected %s, but got %s", tc.expected, out)
		})
	}
}

func TestQuoteOutputForInput_BelowReserve(t *testing.T) {
	reserveOut := big.NewInt(2_000_000)
	out, err := QuoteOutputForInput(pow2(180), big.NewInt(1_000_000), reserveOut, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, out.Cmp(reserveOut), "output must stay strictly below the reserve")
}

func TestQuoteOutputForInput_Monotonic(t *testing.T) {
	reserveIn := big.NewInt(1_000_000)
	reserveOut := big.NewInt(2_000_000)

	var amounts []*big.Int
	for i := int64(0); i <= 5_000; i += 7 {
		amounts = append(amounts, big.NewInt(i))
	}
	for shift := uint(13); shift <= 200; shift++ {
		amounts = append(amounts, pow2(shift))
	}

	for _, fee := range []uint16{0, 30, 100, 9_999} {
		prev := new(big.Int)
		for _, amountIn := range amounts {
			out, err := QuoteOutputForInput(amountIn, reserveIn, reserveOut, fee)
			require.NoError(t, err)
			require.GreaterOrEqual(t, out.Cmp(prev), 0, "fee %d: output decreased at amountIn %s", fee, amountIn)
			prev = out
		}
	}
}

func TestQuoteInputForOutput(t *testing.T) {
	testCases := []struct {
		name       string
		amountOut  *big.Int
		reserveIn  *big.Int
		reserveOut *big.Int
		feeBps     uint16
		expected   *big.Int
		expectErr  error
	}{
		{
			name:       "Reference swap reversed",
			amountOut:  big.NewInt(19743),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     30,
			expected:   big.NewInt(10_000),
		},
		{
			name:       "Rounds up",
			amountOut:  big.NewInt(1),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     0,
			expected:   big.NewInt(1),
		},
		{
			name:       "Zero amount",
			amountOut:  big.NewInt(0),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     30,
			expected:   big.NewInt(0),
		},
		{
			name:       "Empty pool",
			amountOut:  big.NewInt(5),
			reserveIn:  big.NewInt(0),
			reserveOut: big.NewInt(0),
			feeBps:     30,
			expected:   big.NewInt(0),
		},
		{
			name:       "Whole reserve",
			amountOut:  big.NewInt(2_000_000),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     30,
			expectErr:  ErrUnsatisfiable,
		},
		{
			name:       "Above reserve",
			amountOut:  big.NewInt(2_000_001),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     30,
			expectErr:  ErrUnsatisfiable,
		},
		{
			name:       "Negative amount",
			amountOut:  big.NewInt(-5),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			expectErr:  ErrInvalidAmount,
		},
		{
			name:       "Invalid fee",
			amountOut:  big.NewInt(5),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(2_000_000),
			feeBps:     12000,
			expectErr:  ErrInvalidFee,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in, err := QuoteInputForOutput(tc.amountOut, tc.reserveIn, tc.reserveOut, tc.feeBps)
			if tc.expectErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Zero(t, tc.expected.Cmp(in), "Expected %s, but got %s", tc.expected, in)
		})
	}
}

// TestQuoteRoundTrip checks that the input quoted for an output always buys at least that
// output, and that one unit less never does.
func TestQuoteRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	one := big.NewInt(1)

	for i := 0; i < 2000; i++ {
		reserveIn := new(big.Int).Add(new(big.Int).Rand(rng, pow2(100)), one)
		reserveOut := new(big.Int).Add(new(big.Int).Rand(rng, pow2(100)), big.NewInt(4))
		amountOut := new(big.Int).Add(new(big.Int).Rand(rng, new(big.Int).Rsh(reserveOut, 1)), one)
		feeBps := uint16(rng.Intn(1000))

		in, err := QuoteInputForOutput(amountOut, reserveIn, reserveOut, feeBps)
		require.NoError(t, err)

		out, err := QuoteOutputForInput(in, reserveIn, reserveOut, feeBps)
		require.NoError(t, err)
		require.True(t, out.Cmp(amountOut) >= 0, "case %d: %s in buys %s, want >= %s", i, in, out, amountOut)

		less, err := QuoteOutputForInput(new(big.Int).Sub(in, one), reserveIn, reserveOut, feeBps)
		require.NoError(t, err)
		require.True(t, less.Cmp(amountOut) < 0, "case %d: input %s is not minimal", i, in)
	}
}

func TestGetAmountOut(t *testing.T) {
	testCases := []struct {
		name           string
		amountIn       *big.Int
		tokenIn        uint64
		tokenOut       uint64
		pool           uniswapv2.Pool
		expectedAmount *big.Int
		expectedErr    error
	}{
		{
			name:           "Standard Swap (Token0 -> Token1)",
			amountIn:       big.NewInt(1_000_000),
			tokenIn:        0,
			tokenOut:       1,
			pool:           usdcWethPool(30),
			expectedAmount: newBigIntFromString("493579017198530649"),
		},
		{
			name:           "Standard Swap (Token1 -> Token0)",
			amountIn:       newBigIntFromString("1000000000000000000"),
			tokenIn:        1,
			tokenOut:       0,
			pool:           usdcWethPool(30),
			expectedAmount: big.NewInt(1955016),
		},
		{
			name:           "Swap with Different Fee",
			amountIn:       big.NewInt(1_000_000),
			tokenIn:        0,
			tokenOut:       1,
			pool:           usdcWethPool(100),
			expectedAmount: newBigIntFromString("490147539360332706"),
		},
		{
			name:     "Edge Case: Zero Liquidity",
			amountIn: big.NewInt(1_000_000),
			tokenIn:  0,
			tokenOut: 1,
			pool: uniswapv2.Pool{
				ID:       3,
				Token0:   0,
				Token1:   1,
				Reserve0: big.NewInt(0),
				Reserve1: big.NewInt(0),
				FeeBps:   30,
			},
			expectedAmount: big.NewInt(0),
		},
		{
			name:           "Edge Case: Missing Reserves",
			amountIn:       big.NewInt(1_000_000),
			tokenIn:        0,
			tokenOut:       1,
			pool:           uniswapv2.Pool{ID: 4, Token0: 0, Token1: 1},
			expectedAmount: big.NewInt(0),
		},
		{
			name:        "Invalid Input: Nil AmountIn",
			tokenIn:     0,
			tokenOut:    1,
			pool:        usdcWethPool(30),
			expectedErr: ErrNilAmount,
		},
		{
			name:        "Invalid Input: Negative AmountIn",
			amountIn:    big.NewInt(-100),
			tokenIn:     0,
			tokenOut:    1,
			pool:        usdcWethPool(30),
			expectedErr: ErrInvalidAmount,
		},
		{
			name:        "Invalid Input: Token Mismatch",
			amountIn:    big.NewInt(1_000_000),
			tokenIn:     99,
			tokenOut:    1,
			pool:        usdcWethPool(30),
			expectedErr: ErrTokenMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountOut, err := GetAmountOut(tc.amountIn, tc.tokenIn, tc.tokenOut, tc.pool)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, amountOut)
			assert.Zero(t, tc.expectedAmount.Cmp(amountOut), "Expected %s, but got %s", tc.expectedAmount, amountOut)
		})
	}
}

func TestGetAmountIn(t *testing.T) {
	testCases := []struct {
		name           string
		amountOut      *big.Int
		tokenIn        uint64
		tokenOut       uint64
		pool           uniswapv2.Pool
		expectedAmount *big.Int
		expectedErr    error
	}{
		{
			name:           "Standard Swap (Token0 -> Token1)",
			amountOut:      newBigIntFromString("493579017198530649"),
			tokenIn:        0,
			tokenOut:       1,
			pool:           usdcWethPool(30),
			expectedAmount: big.NewInt(1_000_000),
		},
		{
			name:           "Standard Swap (Token1 -> Token0)",
			amountOut:      big.NewInt(1955016),
			tokenIn:        1,
			tokenOut:       0,
			pool:           usdcWethPool(30),
			expectedAmount: newBigIntFromString("999999498234537320"),
		},
		{
			name:        "Invalid Input: Nil AmountOut",
			tokenIn:     0,
			tokenOut:    1,
			pool:        usdcWethPool(30),
			expectedErr: ErrNilAmount,
		},
		{
			name:        "Unsatisfiable: more than the reserve",
			amountOut:   newBigIntFromString("60000000000000000000"),
			tokenIn:     0,
			tokenOut:    1,
			pool:        usdcWethPool(30),
			expectedErr: ErrUnsatisfiable,
		},
		{
			name:        "Invalid Input: Token Mismatch",
			amountOut:   big.NewInt(1),
			tokenIn:     0,
			tokenOut:    7,
			pool:        usdcWethPool(30),
			expectedErr: ErrTokenMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amountIn, err := GetAmountIn(tc.amountOut, tc.tokenIn, tc.tokenOut, tc.pool)
			if tc.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Zero(t, tc.expectedAmount.Cmp(amountIn), "Expected %s, but got %s", tc.expectedAmount, amountIn)
		})
	}
}

func TestSimulateSwap(t *testing.T) {
	pool := usdcWethPool(30)
	amountIn := big.NewInt(1_000_000)

	amountOut, newPool, err := SimulateSwap(amountIn, 0, 1, pool)
	require.NoError(t, err)

	assert.Zero(t, newBigIntFromString("493579017198530649").Cmp(amountOut))
	assert.Zero(t, big.NewInt(101_000_000).Cmp(newPool.Reserve0))
	assert.Zero(t, new(big.Int).Sub(pool.Reserve1, amountOut).Cmp(newPool.Reserve1))
	assert.Equal(t, pool.ID, newPool.ID)
	assert.Equal(t, pool.FeeBps, newPool.FeeBps)

	t.Run("Token mismatch", func(t *testing.T) {
		_, _, err := SimulateSwap(amountIn, 5, 1, pool)
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})
}

func TestSimulateSwap_IdempotencyAndStateIsolation(t *testing.T) {
	originalPool := usdcWethPool(30)
	amountIn := big.NewInt(1_000_000)

	amountOut1, state1, err := SimulateSwap(amountIn, 0, 1, originalPool)
	require.NoError(t, err)
	amountOut2, state2, err := SimulateSwap(amountIn, 0, 1, originalPool)
	require.NoError(t, err)

	t.Run("Idempotency Check", func(t *testing.T) {
		assert.Equal(t, amountOut1.String(), amountOut2.String())
		assert.True(t, reflect.DeepEqual(state1, state2))
		assert.Equal(t, "100000000", originalPool.Reserve0.String(), "input pool must not be mutated")
	})

	t.Run("Deep Copy Check (Reserves)", func(t *testing.T) {
		assert.NotSame(t, originalPool.Reserve0, state1.Reserve0)
		assert.NotSame(t, originalPool.Reserve1, state1.Reserve1)
	})

	t.Run("Result Isolation Check", func(t *testing.T) {
		before := new(big.Int).Set(state2.Reserve0)
		state1.Reserve0.Add(state1.Reserve0, big.NewInt(12345))
		assert.Equal(t, before.String(), state2.Reserve0.String())
	})
}

func TestGetExchangeRate(t *testing.T) {
	// Token 0 is WETH (18 decimals), token 1 is USDC (6 decimals), 3,000 USDC per WETH.
	mockPool := uniswapv2.Pool{
		Token0:   0,
		Token1:   1,
		Reserve0: newBigIntFromString("1000000000000000000000"),
		Reserve1: big.NewInt(3_000_000_000_000),
	}

	testCases := []struct {
		name          string
		tokenInID     uint64
		tokenOutID    uint64
		decimalsIn    uint8
		pool          uniswapv2.Pool
		expectedPrice string
		expectedErr   error
	}{
		{
			name:          "WETH -> USDC",
			tokenInID:     0,
			tokenOutID:    1,
			decimalsIn:    18,
			pool:          mockPool,
			expectedPrice: "2970297029",
		},
		{
			name:          "USDC -> WETH",
			tokenInID:     1,
			tokenOutID:    0,
			decimalsIn:    6,
			pool:          mockPool,
			expectedPrice: "330033003300330",
		},
		{
			name:        "Token not in pool",
			tokenInID:   2,
			tokenOutID:  0,
			decimalsIn:  18,
			pool:        mockPool,
			expectedErr: ErrTokenMismatch,
		},
		{
			name:       "Zero reserve",
			tokenInID:  0,
			tokenOutID: 1,
			decimalsIn: 18,
			pool: uniswapv2.Pool{
				Token0:   0,
				Token1:   1,
				Reserve0: big.NewInt(0),
				Reserve1: big.NewInt(3_000_000_000_000),
			},
			expectedErr: ErrInsufficientLiquidity,
		},
		{
			name:       "Reserve too small to probe",
			tokenInID:  0,
			tokenOutID: 1,
			decimalsIn: 18,
			pool: uniswapv2.Pool{
				Token0:   0,
				Token1:   1,
				Reserve0: big.NewInt(99),
				Reserve1: big.NewInt(3_000_000_000_000),
			},
			expectedErr: ErrInsufficientLiquidity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rate, err := GetExchangeRate(tc.tokenInID, tc.tokenOutID, tc.decimalsIn, tc.pool)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedPrice, rate.String())
		})
	}
}

func TestGetTotalSupply(t *testing.T) {
	pool := uniswapv2.Pool{ID: 1, TotalSupply: big.NewInt(42)}
	assert.Equal(t, "42", GetTotalSupply(pool).String())

	pool.TotalSupply = nil
	supply := GetTotalSupply(pool)
	require.NotNil(t, supply)
	assert.Zero(t, supply.Sign())
}

func TestGetScaledDecimal(t *testing.T) {
	assert.Equal(t, "1", GetScaledDecimal(0).String())
	assert.Equal(t, "1000000", GetScaledDecimal(6).String())
	assert.Equal(t, "1000000000000000000", GetScaledDecimal(18).String())
	assert.Equal(t, "1"+"000000000000000000000000", GetScaledDecimal(24).String())
}

func TestConcurrentQuotes(t *testing.T) {
	done := make(chan *big.Int, 64)
	for i := 0; i < cap(done); i++ {
		go func() {
			out, err := QuoteOutputForInput(big.NewInt(10_000), big.NewInt(1_000_000), big.NewInt(2_000_000), 30)
			if err != nil {
				done <- nil
				return
			}
			done <- out
		}()
	}
	for i := 0; i < cap(done); i++ {
		out := <-done
		require.NotNil(t, out)
		assert.Equal(t, "19743", out.String())
	}
}

// --- Benchmarks ---

var result *big.Int
var resultPool uniswapv2.Pool

func benchPool() uniswapv2.Pool {
	return uniswapv2.Pool{
		ID:       1,
		Token0:   0,
		Token1:   1,
		Reserve0: newBigIntFromString("2000000000000"),          // 2,000,000 USDC
		Reserve1: newBigIntFromString("1000000000000000000000"), // 1,000 WETH
		FeeBps:   30,
	}
}

func BenchmarkGetAmountOut(b *testing.B) {
	pool := benchPool()
	amountIn := newBigIntFromString("1000000000000000000")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, _ = GetAmountOut(amountIn, 1, 0, pool)
	}
}

func BenchmarkGetAmountIn(b *testing.B) {
	pool := benchPool()
	amountOut := newBigIntFromString("1994000000")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, _ = GetAmountIn(amountOut, 1, 0, pool)
	}
}

func BenchmarkSimulateSwap(b *testing.B) {
	pool := benchPool()
	amountIn := newBigIntFromString("1000000000000000000")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, resultPool, _ = SimulateSwap(amountIn, 1, 0, pool)
	}
}

func BenchmarkEstimateZapLiquidity(b *testing.B) {
	total := newBigIntFromString("1000000000000000000")
	reserveA := newBigIntFromString("100000000000000000000")
	reserveB := newBigIntFromString("200000000000000000000")
	supply := newBigIntFromString("141000000000000000000")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		est, _ := EstimateZapLiquidity(total, 5000, reserveA, reserveB, 30, supply)
		result = est.Liquidity
	}
}
