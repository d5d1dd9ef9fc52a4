package browser

const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button[aria-label="Alles akzeptieren"]',
    'button[aria-label="Tout accepter"]',
    'form[action*="consent"] button'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`

const readyScript = `!!(document.querySelector('div[role="feed"]') || document.querySelector('h1.DUwDvf'))`

const placeReadyScript = `!!document.querySelector('h1.DUwDvf')`

const scrollScript = `(function () {
  const feed = document.querySelector('div[role="feed"]');
  if (feed) {
    feed.scrollBy(0, 10000);
  }
})();`

// listingsScript returns the distinct place links in feed order.
const listingsScript = `(function () {
  const seen = new Set();
  const out = [];
  for (const a of document.querySelectorAll('a[href*="https://www.google.com/maps/place"]')) {
    if (!seen.has(a.href)) {
      seen.add(a.href);
      out.push(a.href);
    }
  }
  return out;
})();`
